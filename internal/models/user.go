package models

// User is the single persisted account entity.
type User struct {
	ID          int64  `bson:"_id" json:"id"`
	FirstName   string `bson:"firstName" json:"firstName"`
	LastName    string `bson:"lastName" json:"lastName"`
	CIN         string `bson:"cin" json:"cin"`
	Email       string `bson:"email" json:"email"`
	PhoneNumber string `bson:"phoneNumber" json:"phoneNumber"`
	Password    string `bson:"password" json:"-"` // bcrypt hash, never serialized to clients
}

// UserUpdate carries the mutable fields of an account. A nil PasswordHash
// keeps the stored one.
type UserUpdate struct {
	FirstName    string
	LastName     string
	Email        string
	PhoneNumber  string
	PasswordHash *string
}
