package mongodb

import (
	"strings"
	"testing"
	"time"

	"order_worker/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	userID := uuid.New()
	received := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		html       string
		compressed bool
	}{
		{"small body stays plain", "<p>Order placed</p>", false},
		{"large body is compressed", "<table>" + strings.Repeat("<tr><td>Shirt</td></tr>", 100) + "</table>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &domain.EmailContent{
				ID:         "msg-1",
				Subject:    "Your order",
				From:       "orders@zara.com",
				HTMLBody:   tt.html,
				TextBody:   "Order placed",
				ReceivedAt: received,
			}

			doc, err := toDocument(userID, email)
			require.NoError(t, err)
			assert.Equal(t, tt.compressed, doc.IsCompressed)
			assert.Equal(t, userID.String(), doc.UserID)

			got, err := toEmail(doc)
			require.NoError(t, err)
			assert.Equal(t, email, got)
		})
	}
}

func TestOrderByRequest(t *testing.T) {
	byID := map[string]domain.EmailContent{
		"a": {ID: "a"},
		"c": {ID: "c"},
	}

	got := orderByRequest([]string{"c", "b", "a", "c"}, byID)

	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := toEmail(&orderEmailDocument{HTML: []byte("not gzip"), IsCompressed: true})
	assert.Error(t, err)
}
