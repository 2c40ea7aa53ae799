package models

import "time"

// Category is the clothing category of a listing.
type Category string

const (
	CategoryWomensTops      Category = "womensTops"
	CategoryWomensBottoms   Category = "womensBottoms"
	CategoryWomensDresses   Category = "womensDresses"
	CategoryWomensOuterwear Category = "womensOuterwear"
	CategoryMensTops        Category = "mensTops"
	CategoryMensBottoms     Category = "mensBottoms"
	CategoryMensOuterwear   Category = "mensOuterwear"
	CategoryShoes           Category = "shoes"
	CategoryAccessories     Category = "accessories"
	CategoryFormalwear      Category = "formalwear"
)

var categoryLabels = map[Category]string{
	CategoryWomensTops:      "Women's Tops",
	CategoryWomensBottoms:   "Women's Bottoms",
	CategoryWomensDresses:   "Women's Dresses",
	CategoryWomensOuterwear: "Women's Outerwear",
	CategoryMensTops:        "Men's Tops",
	CategoryMensBottoms:     "Men's Bottoms",
	CategoryMensOuterwear:   "Men's Outerwear",
	CategoryShoes:           "Shoes",
	CategoryAccessories:     "Accessories",
	CategoryFormalwear:      "Formalwear",
}

// Label is the display name of c. Unknown values label as themselves.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ItemSize is the labelled size of an item.
type ItemSize string

const (
	SizeXXSmall ItemSize = "xxSmall"
	SizeXSmall  ItemSize = "xSmall"
	SizeSmall   ItemSize = "small"
	SizeMedium  ItemSize = "medium"
	SizeLarge   ItemSize = "large"
	SizeXLarge  ItemSize = "xLarge"
	SizeXXLarge ItemSize = "xxLarge"
)

// ItemColor is the dominant color of an item.
type ItemColor string

const (
	ColorBlack  ItemColor = "black"
	ColorWhite  ItemColor = "white"
	ColorGray   ItemColor = "gray"
	ColorRed    ItemColor = "red"
	ColorPink   ItemColor = "pink"
	ColorOrange ItemColor = "orange"
	ColorYellow ItemColor = "yellow"
	ColorGreen  ItemColor = "green"
	ColorBlue   ItemColor = "blue"
	ColorPurple ItemColor = "purple"
	ColorBrown  ItemColor = "brown"
	ColorMulti  ItemColor = "multi"
)

// Condition describes wear on an item.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "likeNew"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionWorn    Condition = "worn"
)

// RentalDuration is the longest period an item can be rented for.
type RentalDuration string

const (
	DurationOneWeek    RentalDuration = "oneWeek"
	DurationTwoWeeks   RentalDuration = "twoWeeks"
	DurationOneMonth   RentalDuration = "oneMonth"
	DurationThreeMonth RentalDuration = "threeMonths"
)

// Tag is a free-form style label. The constants below are the labels the
// app suggests, but stored tags are not restricted to them.
type Tag string

const (
	TagVintage     Tag = "vintage"
	TagStreetwear  Tag = "streetwear"
	TagFormal      Tag = "formal"
	TagCasual      Tag = "casual"
	TagParty       Tag = "party"
	TagDesigner    Tag = "designer"
	TagSustainable Tag = "sustainable"
)

// PickupLocation is a campus meeting point for hand-off.
type PickupLocation string

const (
	PickupLibrary      PickupLocation = "library"
	PickupStudentUnion PickupLocation = "studentUnion"
	PickupDorms        PickupLocation = "dorms"
	PickupGym          PickupLocation = "gym"
	PickupOffCampus    PickupLocation = "offCampus"
)

// Listing is a rentable item. ID is chosen by the client before the first
// write and doubles as the storage key.
type Listing struct {
	ID                string           `json:"id" firestore:"id"`
	Title             string           `json:"title" firestore:"title"`
	CreationTime      time.Time        `json:"creationTime" firestore:"creationTime"`
	Description       string           `json:"description" firestore:"description"`
	Category          Category         `json:"category" firestore:"category"`
	UserID            string           `json:"userID" firestore:"userID"`
	Size              ItemSize         `json:"size" firestore:"size"`
	Price             float64          `json:"price" firestore:"price"`
	Color             ItemColor        `json:"color" firestore:"color"`
	Condition         Condition        `json:"condition" firestore:"condition"`
	PhotoURLs         []string         `json:"photoURLs" firestore:"photoURLs"`
	Tags              []Tag            `json:"tags" firestore:"tags"`
	Brand             string           `json:"brand" firestore:"brand"`
	MaxRentalDuration RentalDuration   `json:"maxRentalDuration" firestore:"maxRentalDuration"`
	PickupLocations   []PickupLocation `json:"pickupLocations" firestore:"pickupLocations"`
	Available         bool             `json:"available" firestore:"available"`
	Rating            float64          `json:"rating" firestore:"rating"`
}

// ListingDraft is an unsaved listing waiting for its photos to upload.
type ListingDraft struct {
	Title             string           `json:"title" validate:"required,max=200"`
	Description       string           `json:"description" validate:"max=2000"`
	Category          Category         `json:"category" validate:"omitempty,oneof=womensTops womensBottoms womensDresses womensOuterwear mensTops mensBottoms mensOuterwear shoes accessories formalwear"`
	UserID            string           `json:"userID"`
	Size              ItemSize         `json:"size" validate:"omitempty,oneof=xxSmall xSmall small medium large xLarge xxLarge"`
	Price             float64          `json:"price" validate:"gte=0"`
	Color             ItemColor        `json:"color" validate:"omitempty,oneof=black white gray red pink orange yellow green blue purple brown multi"`
	Condition         Condition        `json:"condition" validate:"omitempty,oneof=new likeNew good fair worn"`
	PhotoURLs         []string         `json:"photoURLs"`
	Tags              []Tag            `json:"tags" validate:"dive,max=50"`
	Brand             string           `json:"brand" validate:"max=100"`
	MaxRentalDuration RentalDuration   `json:"maxRentalDuration" validate:"omitempty,oneof=oneWeek twoWeeks oneMonth threeMonths"`
	PickupLocations   []PickupLocation `json:"pickupLocations" validate:"dive,oneof=library studentUnion dorms gym offCampus"`
	Available         bool             `json:"available"`
	Rating            float64          `json:"rating" validate:"gte=0"`
}

// Promote turns the draft into a listing with the given id and creation time.
func (d ListingDraft) Promote(id string, createdAt time.Time) Listing {
	photos := d.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	tags := d.Tags
	if tags == nil {
		tags = []Tag{}
	}
	return Listing{
		ID:                id,
		Title:             d.Title,
		CreationTime:      createdAt,
		Description:       d.Description,
		Category:          d.Category,
		UserID:            d.UserID,
		Size:              d.Size,
		Price:             d.Price,
		Color:             d.Color,
		Condition:         d.Condition,
		PhotoURLs:         photos,
		Tags:              tags,
		Brand:             d.Brand,
		MaxRentalDuration: d.MaxRentalDuration,
		PickupLocations:   d.PickupLocations,
		Available:         d.Available,
		Rating:            d.Rating,
	}
}

// Draft returns the editable part of l, used to validate full updates.
func (l Listing) Draft() ListingDraft {
	return ListingDraft{
		Title:             l.Title,
		Description:       l.Description,
		Category:          l.Category,
		UserID:            l.UserID,
		Size:              l.Size,
		Price:             l.Price,
		Color:             l.Color,
		Condition:         l.Condition,
		PhotoURLs:         l.PhotoURLs,
		Tags:              l.Tags,
		Brand:             l.Brand,
		MaxRentalDuration: l.MaxRentalDuration,
		PickupLocations:   l.PickupLocations,
		Available:         l.Available,
		Rating:            l.Rating,
	}
}

// WithDisplayDefaults fills the fields the browse screens cannot render
// empty.
func (l Listing) WithDisplayDefaults() Listing {
	if l.Title == "" {
		l.Title = "Untitled"
	}
	if l.Category == "" {
		l.Category = CategoryWomensTops
	}
	if l.Size == "" {
		l.Size = SizeMedium
	}
	if l.Color == "" {
		l.Color = ColorBlue
	}
	if l.Condition == "" {
		l.Condition = ConditionGood
	}
	if l.MaxRentalDuration == "" {
		l.MaxRentalDuration = DurationOneMonth
	}
	if l.PhotoURLs == nil {
		l.PhotoURLs = []string{}
	}
	if l.Tags == nil {
		l.Tags = []Tag{}
	}
	return l
}
