package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryEarlyBird     Category = "earlyBird"
	CategorySecondRelease Category = "secondRelease"
	CategoryThirdRelease  Category = "thirdRelease"
)

// Categories lists the release tiers in sale order.
var Categories = []Category{CategoryEarlyBird, CategorySecondRelease, CategoryThirdRelease}

var capacities = map[Category]int64{
	CategoryEarlyBird:     30,
	CategorySecondRelease: 60,
	CategoryThirdRelease:  160,
}

var labels = map[Category]string{
	CategoryEarlyBird:     "Early Bird",
	CategorySecondRelease: "Second Release",
	CategoryThirdRelease:  "Third Release",
}

// Capacity returns the number of places sold in this tier.
func (c Category) Capacity() int64 {
	return capacities[c]
}

func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) Valid() bool {
	_, ok := capacities[c]
	return ok
}

// CategoryForCount picks the tier of the next ticket given how many tickets
// already exist. Thresholds are cumulative capacities of the earlier tiers.
func CategoryForCount(count int64) Category {
	switch {
	case count < capacities[CategoryEarlyBird]:
		return CategoryEarlyBird
	case count < capacities[CategoryEarlyBird]+capacities[CategorySecondRelease]:
		return CategorySecondRelease
	default:
		return CategoryThirdRelease
	}
}

type Ticket struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PaymentID      string             `bson:"paymentId" json:"paymentId"`
	Email          string             `bson:"email" json:"email"`
	Name           string             `bson:"name" json:"name"`
	FirstName      string             `bson:"firstName" json:"firstName"`
	Category       Category           `bson:"category" json:"category"`
	QRCodeScanned  bool               `bson:"qrCodeScanned" json:"qrCodeScanned"`
	ScannedAt      *time.Time         `bson:"scannedAt,omitempty" json:"scannedAt,omitempty"`
	ImageConsent   bool               `bson:"imageConsent" json:"imageConsent"`
	Amount         int64              `bson:"amount" json:"amount"`
	Currency       string             `bson:"currency" json:"currency"`
	EmailSent      bool               `bson:"emailSent" json:"emailSent"`
	EmailSentAt    *time.Time         `bson:"emailSentAt,omitempty" json:"emailSentAt,omitempty"`
	EmailAttempts  int                `bson:"emailAttempts" json:"emailAttempts"`
	EmailMessageID string             `bson:"emailMessageId,omitempty" json:"emailMessageId,omitempty"`
	EmailError     string             `bson:"emailError,omitempty" json:"emailError,omitempty"`
	PDFPath        string             `bson:"pdfPath,omitempty" json:"pdfPath,omitempty"`
	QRCodePath     string             `bson:"qrCodePath,omitempty" json:"qrCodePath,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// TicketStatus is the public view returned by the status endpoint.
type TicketStatus struct {
	PaymentID     string     `json:"paymentId"`
	Name          string     `json:"name"`
	FirstName     string     `json:"firstName"`
	Category      Category   `json:"category"`
	QRCodeScanned bool       `json:"qrCodeScanned"`
	ScannedAt     *time.Time `json:"scannedAt,omitempty"`
	EmailSent     bool       `json:"emailSent"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (t *Ticket) Status() TicketStatus {
	return TicketStatus{
		PaymentID:     t.PaymentID,
		Name:          t.Name,
		FirstName:     t.FirstName,
		Category:      t.Category,
		QRCodeScanned: t.QRCodeScanned,
		ScannedAt:     t.ScannedAt,
		EmailSent:     t.EmailSent,
		CreatedAt:     t.CreatedAt,
	}
}

// DeliveryUpdate is the outcome of one email delivery run.
type DeliveryUpdate struct {
	Sent      bool
	SentAt    *time.Time
	Attempts  int
	MessageID string
	Error     string
}

type RenderedTicket struct {
	PDFPath    string
	QRCodePath string
	QRPayload  string
}

type Availability struct {
	EarlyBird     int64 `json:"earlyBird"`
	SecondRelease int64 `json:"secondRelease"`
	ThirdRelease  int64 `json:"thirdRelease"`
}

// NewAvailability computes remaining places from sold counts per tier.
func NewAvailability(sold map[Category]int64) Availability {
	return Availability{
		EarlyBird:     remaining(CategoryEarlyBird, sold[CategoryEarlyBird]),
		SecondRelease: remaining(CategorySecondRelease, sold[CategorySecondRelease]),
		ThirdRelease:  remaining(CategoryThirdRelease, sold[CategoryThirdRelease]),
	}
}

func (a Availability) Remaining(c Category) int64 {
	switch c {
	case CategoryEarlyBird:
		return a.EarlyBird
	case CategorySecondRelease:
		return a.SecondRelease
	case CategoryThirdRelease:
		return a.ThirdRelease
	}
	return 0
}

func remaining(c Category, sold int64) int64 {
	left := c.Capacity() - sold
	if left < 0 {
		return 0
	}
	return left
}
