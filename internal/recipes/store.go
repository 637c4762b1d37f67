package recipes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDuplicateRecipe is returned by NewStore when two entries share a name after lowercasing.
var ErrDuplicateRecipe = errors.New("recipes: duplicate recipe name")

// Entry is a single dish in the recipe book.
type Entry struct {
	Name         string
	Instructions string
}

// Store is an immutable, case-insensitive mapping from dish name to recipe text.
// It is safe for concurrent use because it is never mutated after construction.
type Store struct {
	book map[string]string
}

// NewStore builds a Store from entries. Names are lowercased and trimmed; empty or duplicate
// names are rejected.
func NewStore(entries []Entry) (*Store, error) {
	book := make(map[string]string, len(entries))
	for _, e := range entries {
		key := normalizeKey(e.Name)
		if key == "" {
			return nil, fmt.Errorf("recipes: empty recipe name")
		}
		if _, exists := book[key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRecipe, key)
		}
		book[key] = e.Instructions
	}
	return &Store{book: book}, nil
}

// DefaultStore returns the built-in recipe book.
func DefaultStore() *Store {
	s, err := NewStore(DefaultEntries())
	if err != nil {
		// built-in entries are unique
		panic(err)
	}
	return s
}

// Lookup returns the recipe for key, ignoring case.
func (s *Store) Lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	recipe, ok := s.book[strings.ToLower(key)]
	return recipe, ok
}

// Len reports the number of dishes.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.book)
}

// Names returns the dish names in alphabetical order.
func (s *Store) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.book))
	for name := range s.book {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultEntries returns a fresh copy of the built-in recipes.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "pasta", Instructions: "Ingredients: pasta, tomato sauce, cheese. \nSteps: Boil pasta, prepare sauce, mix and serve."},
		{Name: "salad", Instructions: "Ingredients: lettuce, tomato, cucumber. \nSteps: Chop vegetables, mix and serve."},
		{Name: "soup", Instructions: "Ingredients: Potatoes, Carrots, Onion.\nSteps: Boil vegetables, blend, and serve."},
		{Name: "meat", Instructions: "Ingredients: Chicken, Garlic, Olive oil.\nSteps: Roast chicken with garlic and olive oil."},
		{Name: "dessert", Instructions: "\"Ingredients: 200 g dark chocolate, 150 g butter, 150 g sugar, 3 eggs, 100 g flour.\nSteps: Melt chocolate and butter. Beat eggs with sugar. Mix in chocolate, then add flour. Bake at 180°C for 25-30 minutes.\""},
	}
}
