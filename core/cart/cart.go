package cart

import (
	"github.com/shopspring/decimal"
)

// Issue explains why a line cannot be bought right now.
type Issue string

const (
	IssueNone              Issue = ""
	IssueArtworkInactive   Issue = "artwork_inactive"
	IssueArtistInactive    Issue = "artist_inactive"
	IssueInsufficientStock Issue = "insufficient_stock"
)

// Cart is the principal's cart as read at checkout time. It is not kept in
// sync with inventory after it has been read.
type Cart struct {
	ID        string `json:"id"`
	Principal string `json:"-"`
	Lines     []Line `json:"lines"`
}

type ArtworkSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity"`
	Active        bool            `json:"active"`
	ArtistActive  bool            `json:"artistActive"`
}

type Line struct {
	ID       string          `json:"id"`
	Artwork  ArtworkSnapshot `json:"artwork"`
	Quantity int             `json:"quantity"`
}

// Issue returns the first reason the line is not purchasable, or IssueNone.
func (l Line) Issue() Issue {
	switch {
	case !l.Artwork.Active:
		return IssueArtworkInactive
	case !l.Artwork.ArtistActive:
		return IssueArtistInactive
	case l.Artwork.StockQuantity < l.Quantity:
		return IssueInsufficientStock
	}
	return IssueNone
}

func (l Line) Purchasable() bool {
	return l.Issue() == IssueNone
}

// Total is UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.Artwork.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Availability is the partition of a cart into lines that can and cannot be
// bought, with the subtotal of the purchasable ones.
type Availability struct {
	Purchasable   []Line          `json:"purchasable"`
	Unpurchasable []Line          `json:"unpurchasable"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

func (a Availability) Empty() bool {
	return len(a.Purchasable) == 0
}

// Evaluate partitions the cart lines, preserving their order. Lines with a
// non-positive quantity are not part of a valid cart and are reported as
// unpurchasable.
func Evaluate(c Cart) Availability {
	av := Availability{
		Purchasable:   make([]Line, 0, len(c.Lines)),
		Unpurchasable: make([]Line, 0),
		Subtotal:      decimal.Zero,
	}

	for _, l := range c.Lines {
		if l.Quantity < 1 || !l.Purchasable() {
			av.Unpurchasable = append(av.Unpurchasable, l)
			continue
		}
		av.Purchasable = append(av.Purchasable, l)
		av.Subtotal = av.Subtotal.Add(l.Total())
	}

	return av
}
