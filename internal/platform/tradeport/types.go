package tradeport

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nftvista/nftvista/internal/domain"
)

// weiPerCoin converts base-unit amounts to display prices.
var weiPerCoin = decimal.New(1, 18)

// flexInt64 unmarshals from a JSON number or a numeric string so token ids
// work whichever way the API sends them.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

// coinPrice converts a wei amount string to a display price without the
// intermediate float drift of strconv.ParseFloat on 18-digit integers.
func coinPrice(wei string) float64 {
	if wei == "" {
		return 0
	}
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return 0
	}
	return d.Div(weiPerCoin).InexactFloat64()
}

// APIOrder is an open order as returned by the Tradeport order-book endpoint.
type APIOrder struct {
	ID              string    `json:"id"`
	TokenID         flexInt64 `json:"tokenId"`
	PriceWei        string    `json:"price"`
	Seller          string    `json:"seller"`
	RarityRank      int       `json:"rarityRank"`
	RequiredPayment string    `json:"requiredPayment"`
	SellerOwnsToken bool      `json:"sellerOwnsToken"`
	CreatedAt       string    `json:"createdAt"`
}

// ToDomainListing converts an APIOrder to a domain.Listing in active state.
func (o *APIOrder) ToDomainListing(ticker string) domain.Listing {
	l := domain.Listing{
		ExternalOrderID:    o.ID,
		Ticker:             ticker,
		TokenID:            int64(o.TokenID),
		TotalPrice:         coinPrice(o.PriceWei),
		SellerAddress:      domain.NormalizeAddress(o.Seller),
		RarityRank:         o.RarityRank,
		RequiredPayment:    coinPrice(o.RequiredPayment),
		OwnershipConfirmed: o.SellerOwnsToken,
		Source:             domain.ListingSourceAPI,
		Status:             domain.StatusActive,
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		l.CreatedAt = t
	}
	return l
}

type ordersResponse struct {
	Orders []APIOrder `json:"orders"`
	Total  int        `json:"total"`
}

// APISale is one completed order from the history endpoint.
type APISale struct {
	ID       string    `json:"id"`
	TokenID  flexInt64 `json:"tokenId"`
	PriceWei string    `json:"price"`
	SoldAt   string    `json:"soldAt"`
}

// ToDomainSale converts an APISale to a domain.SalesRecord.
func (s *APISale) ToDomainSale(ticker string) domain.SalesRecord {
	rec := domain.SalesRecord{
		ExternalID: s.ID,
		Ticker:     ticker,
		TokenID:    int64(s.TokenID),
		SalePrice:  coinPrice(s.PriceWei),
	}
	if t, err := time.Parse(time.RFC3339, s.SoldAt); err == nil {
		rec.SaleDate = t
	}
	return rec
}

type salesResponse struct {
	Sales []APISale `json:"sales"`
	Total int       `json:"total"`
}

// APIAttribute is one trait from the metadata endpoint.
type APIAttribute struct {
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Rarity float64 `json:"rarity"`
}

type traitsResponse struct {
	TokenID    flexInt64      `json:"tokenId"`
	Attributes []APIAttribute `json:"attributes"`
}

// ToDomainPayload converts a traits response to a domain.TraitPayload.
func (r *traitsResponse) ToDomainPayload(tokenID int64) *domain.TraitPayload {
	p := &domain.TraitPayload{TokenID: tokenID}
	p.Attributes = make([]domain.TraitAttribute, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		p.Attributes = append(p.Attributes, domain.TraitAttribute{
			Name:   a.Name,
			Value:  a.Value,
			Rarity: a.Rarity,
		})
	}
	return p
}

// APIHolder is one holder from the owners endpoint.
type APIHolder struct {
	Address    string `json:"address"`
	TokenCount int    `json:"tokenCount"`
}

type ownersResponse struct {
	Holders      []APIHolder `json:"holders"`
	TotalHolders int         `json:"totalHolders"`
	TotalMinted  int         `json:"totalMinted"`
}

// ToDomainSnapshot converts an owners response to a domain.OwnerSnapshot.
func (r *ownersResponse) ToDomainSnapshot(ticker string) domain.OwnerSnapshot {
	snap := domain.OwnerSnapshot{
		TotalHolders: r.TotalHolders,
		TotalMinted:  r.TotalMinted,
	}
	snap.Holders = make([]domain.Owner, 0, len(r.Holders))
	for _, h := range r.Holders {
		snap.Holders = append(snap.Holders, domain.Owner{
			Ticker:     ticker,
			Address:    domain.NormalizeAddress(h.Address),
			TokenCount: h.TokenCount,
		})
	}
	return snap
}
