package models

// User represents a member of the rental marketplace.
//
// ID is the storage key of the record. Bodies written by older clients may
// still carry an id field; readers always overwrite it with the key.
type User struct {
	ID           string   `json:"id,omitempty" firestore:"-"`
	FirstName    string   `json:"firstName" firestore:"firstName" validate:"max=100"`
	LastName     string   `json:"lastName" firestore:"lastName" validate:"max=100"`
	Username     string   `json:"username" firestore:"username" validate:"max=100"`
	Pronouns     string   `json:"pronouns" firestore:"pronouns" validate:"max=50"`
	Email        string   `json:"email" firestore:"email" validate:"omitempty,email"`
	Password     string   `json:"password" firestore:"password"` // always stored empty
	University   string   `json:"university" firestore:"university"`
	Rating       float64  `json:"rating" firestore:"rating" validate:"gte=0"`
	Listings     []string `json:"listings" firestore:"listings"`
	LikedItems   []string `json:"likedItems" firestore:"likedItems"`
	StyleChoices []string `json:"styleChoices" firestore:"styleChoices"`
	Events       []string `json:"events" firestore:"events"`
	Followers    []string `json:"followers" firestore:"followers"`
	Following    []string `json:"following" firestore:"following"`
}

// Field names used by targeted array updates.
const (
	UserFieldFollowers = "followers"
	UserFieldFollowing = "following"
	UserFieldEmail     = "email"
)

// NewUser returns a user seeded with an account id and first name, every
// other field left empty.
func NewUser(id, firstName, email string) User {
	return User{
		ID:           id,
		FirstName:    firstName,
		Email:        email,
		Listings:     []string{},
		LikedItems:   []string{},
		StyleChoices: []string{},
		Events:       []string{},
		Followers:    []string{},
		Following:    []string{},
	}
}

// IsFollowing reports whether u follows id.
func (u User) IsFollowing(id string) bool {
	return contains(u.Following, id)
}

// HasFollower reports whether id follows u.
func (u User) HasFollower(id string) bool {
	return contains(u.Followers, id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
