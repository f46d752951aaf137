package categorize

// gender restricts a category to items that are not marked for the other
// gender. Unmarked items may land in any category.
type gender int

const (
	unisex gender = iota
	men
	women
)

type categoryDef struct {
	name     string
	gender   gender
	keywords []string
}

// taxonomy is ordered by priority: the first category with a matching
// keyword wins, so narrower categories sit above broader ones that share
// words with them.
var taxonomy = []categoryDef{
	// Kids
	{"Kids Wear", unisex, []string{"kids", "infant", "toddler", "baby boy", "baby girl", "newborn", "boys", "girls"}},

	// Ethnic
	{"Sarees", women, []string{"saree", "sari"}},
	{"Lehengas", women, []string{"lehenga", "ghagra", "lehenga choli"}},
	{"Kurtas & Kurtis", unisex, []string{"kurta", "kurti", "kurta set", "anarkali"}},
	{"Salwars & Churidars", unisex, []string{"salwar", "churidar", "patiala", "dhoti", "dhoti pant"}},
	{"Sherwanis & Ethnic Jackets", men, []string{"sherwani", "nehru jacket", "bandhgala", "jodhpuri"}},
	{"Dupattas & Shawls", unisex, []string{"dupatta", "shawl", "stole"}},

	// Innerwear and sleepwear
	{"Sports Bras", women, []string{"sports bra"}},
	{"Bras", women, []string{"bra", "bralette", "t-shirt bra", "push-up bra"}},
	{"Lingerie & Briefs", women, []string{"panty", "panties", "lingerie", "hipster", "thong", "shapewear"}},
	{"Swimwear", unisex, []string{"swimsuit", "swimwear", "bikini", "swim trunk", "swim short", "board short", "monokini"}},
	{"Boxers & Trunks", men, []string{"boxer", "boxer brief", "trunk", "men brief", "innerwear brief"}},
	{"Vests & Undershirts", unisex, []string{"undershirt", "vest", "singlet", "innerwear"}},
	{"Socks", unisex, []string{"sock", "ankle sock", "crew sock", "no-show sock"}},
	{"Thermals", unisex, []string{"thermal", "thermal top", "thermal bottom", "base layer"}},
	{"Nightwear & Loungewear", unisex, []string{"pyjama", "pajama", "night suit", "nightsuit", "nightdress", "nightgown", "nighty", "loungewear", "lounge pant", "sleepwear", "bathrobe", "robe"}},

	// Tops
	{"Polo Shirts", unisex, []string{"polo shirt", "polo t-shirt", "polo neck", "polos"}},
	{"T-Shirts", unisex, []string{"t-shirt", "t shirt", "tshirt", "tee", "crew neck t-shirt", "v-neck t-shirt", "graphic tee"}},
	{"Formal Shirts", unisex, []string{"formal shirt", "dress shirt", "business shirt", "office shirt", "slim fit shirt", "regular fit shirt"}},
	{"Casual Shirts", unisex, []string{"casual shirt", "linen shirt", "oxford shirt", "chambray shirt", "denim shirt", "button-down", "button down", "button up", "flannel shirt", "overshirt", "resort shirt"}},
	{"Formal Trousers", unisex, []string{"formal trouser", "dress pant", "suit trouser", "pleated trouser", "tailored trouser"}},
	{"Formal Shoes", unisex, []string{"formal shoe", "oxford", "brogue", "derby", "dress shoe", "monk strap", "wingtip", "cap toe"}},
	{"Jumpsuits & Playsuits", women, []string{"jumpsuit", "playsuit", "romper", "dungaree"}},
	{"Co-ord Sets", women, []string{"co-ord", "co-ord set", "coord set", "matching set"}},
	{"Dresses", women, []string{"dress", "gown", "maxi", "midi dress", "a-line dress", "bodycon", "shift dress", "wrap dress", "cocktail dress", "party dress", "sundress"}},
	{"Sweatshirts & Hoodies", unisex, []string{"sweatshirt", "hooded sweatshirt", "hoodie", "pullover sweat", "zip-up sweatshirt"}},
	{"Sweaters & Cardigans", unisex, []string{"sweater", "pullover", "cardigan", "jumper", "knit", "wool sweater", "cashmere sweater", "turtleneck"}},

	// Outerwear
	{"Blazers", unisex, []string{"blazer", "suit jacket", "sport coat"}},
	{"Suits", men, []string{"suit", "tuxedo", "two-piece suit", "three-piece suit"}},
	{"Coats", unisex, []string{"coat", "overcoat", "trench coat", "peacoat", "winter coat", "parka", "duffle coat"}},
	{"Puffer Jackets", unisex, []string{"puffer", "puffer jacket", "quilted jacket", "padded jacket", "down jacket"}},
	{"Jackets", unisex, []string{"jacket", "bomber", "trucker jacket", "denim jacket", "zip-up jacket", "leather jacket", "windbreaker", "rain jacket", "shacket", "gilet"}},

	// Women
	{"Womens Tops", women, []string{"women top", "ladies top", "blouse", "crop top", "camisole", "cami", "tank top", "sleeveless top", "tunic", "peplum", "bodysuit"}},
	{"Womens Jeans", women, []string{"women jeans", "ladies jeans", "boyfriend jeans", "mom jeans", "high-waisted jeans", "straight leg jeans", "wide leg jeans", "flared jeans"}},
	{"Skirts", women, []string{"skirt", "mini skirt", "midi skirt", "maxi skirt", "pleated skirt", "a-line skirt", "pencil skirt", "wrap skirt", "skort"}},
	{"Leggings & Jeggings", women, []string{"legging", "jegging", "tights", "treggings"}},
	{"Womens Trousers", women, []string{"women trouser", "ladies trouser", "palazzo", "culottes", "wide leg pant", "flared pant", "paperbag trouser"}},
	{"Womens Shorts", women, []string{"women short", "ladies short", "mini short", "high waisted short", "hot pant"}},

	// Men bottoms
	{"Mens Jeans", men, []string{"men jeans", "men jean", "slim fit jeans", "straight fit jeans", "regular fit jeans", "skinny jeans", "bootcut jeans", "tapered jeans", "relaxed fit jeans", "loose fit jeans", "baggy jeans"}},
	{"Track Pants & Joggers", unisex, []string{"track pant", "jogger", "trackpant", "sweatpant", "athletic pant", "running pant", "training pant"}},
	{"Casual Trousers", unisex, []string{"trouser", "casual trouser", "chinos", "chino", "khakis", "casual pant", "cargo pant", "cotton pant", "linen pant", "pant", "pants"}},
	{"Mens Shorts", men, []string{"men short", "bermuda", "cargo short", "denim short", "chino short", "athletic short", "short"}},

	// Activewear
	{"Activewear", unisex, []string{"activewear", "gym", "workout", "running tights", "cycling short", "sports tights", "dri-fit", "dry fit"}},

	// Footwear
	{"Sports Shoes", unisex, []string{"running shoe", "sports shoe", "training shoe", "trainer", "basketball shoe", "football boot", "cleats"}},
	{"Heels", women, []string{"heel", "stiletto", "pump", "platform heel", "wedge", "block heel", "kitten heel", "peep toe"}},
	{"Boots", unisex, []string{"boot", "ankle boot", "chelsea boot", "winter boot", "combat boot", "hiking boot", "riding boot", "desert boot"}},
	{"Flip Flops & Slides", unisex, []string{"flip flop", "flip-flop", "slide", "slider", "pool slide"}},
	{"Sandals & Floaters", unisex, []string{"sandal", "floater", "sport sandal", "gladiator sandal", "beach sandal"}},
	{"Ethnic Footwear", unisex, []string{"mojari", "jutti", "kolhapuri"}},
	{"Flats", women, []string{"ballet flat", "flats", "ballerina"}},
	{"Mens Casual Shoes", men, []string{"men casual shoe", "sneaker", "espadrille", "canvas shoe", "loafer", "boat shoe", "slip-on", "athletic shoe"}},
	{"Womens Casual Shoes", women, []string{"women casual shoe", "ladies sneaker", "women loafer", "slip-on shoe", "walking shoe"}},

	// Accessories
	{"Backpacks", unisex, []string{"backpack", "rucksack", "laptop bag", "school bag"}},
	{"Handbags & Clutches", women, []string{"handbag", "clutch", "tote", "crossbody", "sling bag", "shoulder bag", "hobo bag", "purse"}},
	{"Bags & Luggage", unisex, []string{"bag", "duffel bag", "messenger bag", "trolley", "suitcase", "luggage", "travel bag"}},
	{"Watches", unisex, []string{"watch", "wristwatch", "smartwatch", "chronograph", "analog watch", "digital watch", "sport watch"}},
	{"Sunglasses & Frames", unisex, []string{"sunglass", "sunglasses", "eyeglass", "spectacle", "shades", "aviator", "wayfarer", "polarized"}},
	{"Belts", unisex, []string{"belt", "leather belt", "casual belt", "formal belt", "dress belt", "woven belt", "braided belt"}},
	{"Wallets", unisex, []string{"wallet", "card holder", "cardholder", "money clip", "billfold", "coin purse", "travel wallet", "phone wallet"}},
	{"Caps & Hats", unisex, []string{"cap", "baseball cap", "hat", "beanie", "bucket hat", "beret", "fedora"}},
	{"Scarves & Mufflers", unisex, []string{"scarf", "muffler", "bandana", "neck warmer"}},
	{"Ties & Cufflinks", men, []string{"tie", "necktie", "bow tie", "cufflink", "pocket square", "tie pin"}},
	{"Gloves", unisex, []string{"glove", "mitten"}},
	{"Jewellery", unisex, []string{"necklace", "earring", "bracelet", "ring", "pendant", "chain", "bangle", "anklet", "brooch", "jewellery", "jewelry"}},
	{"Hair Accessories", women, []string{"hair clip", "scrunchie", "headband", "hairband", "hair tie", "claw clip"}},
	{"Fragrances", unisex, []string{"perfume", "fragrance", "deodorant", "eau de toilette", "eau de parfum", "body mist", "cologne"}},
}
