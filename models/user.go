package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PlaceholderFirstName = "Client"
	PlaceholderName      = "Inconnu"
	PlaceholderEmail     = "inconnu@example.com"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Name         string             `bson:"name" json:"name"`
	FirstName    string             `bson:"firstName" json:"firstName"`
	PaymentID    string             `bson:"paymentId" json:"paymentId"`
	ImageConsent bool               `bson:"imageConsent" json:"imageConsent"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.Name
	}
	return u.FirstName + " " + u.Name
}
