package recipes

// Callback tokens attached to the menu buttons.
const (
	TokenSalad    = "category_salad"
	TokenSoup     = "category_soup"
	TokenMeat     = "category_meat"
	TokenDesserts = "category_desserts"
	TokenShowAll  = "show_all_recipes"
)

// Button is an inline button that answers with Token when pressed.
type Button struct {
	Label string
	Token string
}

// Keyboard is a row-major inline keyboard layout.
type Keyboard [][]Button

// BuildMenu returns the category menu shown with the greeting.
func BuildMenu() Keyboard {
	return Keyboard{
		{
			{Label: "Salads 🥗", Token: TokenSalad},
			{Label: "Soups 🍲", Token: TokenSoup},
		},
		{
			{Label: "Meat Dishes 🍖", Token: TokenMeat},
			{Label: "Desserts 🍰", Token: TokenDesserts},
		},
		{
			{Label: "See All Recipes 🔍", Token: TokenShowAll},
		},
	}
}

// CallbackTokens lists every token the dispatcher answers with a category reply.
func CallbackTokens() []string {
	return []string{TokenSalad, TokenSoup, TokenMeat, TokenDesserts, TokenShowAll}
}
