package market

// marketDTO mirrors one element of the market-data provider's
// GET {base}/coins/markets?vs_currency=usd&platform=solana response.
type marketDTO struct {
	ID                           string   `json:"id"`
	Name                         string   `json:"name"`
	Symbol                       string   `json:"symbol"`
	CurrentPrice                 float64  `json:"current_price"`
	PriceChange24h               float64  `json:"price_change_24h"`
	PriceChangePercentage24h     float64  `json:"price_change_percentage_24h"`
	MarketCap                    float64  `json:"market_cap"`
	MarketCapChange24h           float64  `json:"market_cap_change_24h"`
	MarketCapChangePercentage24h float64  `json:"market_cap_change_percentage_24h"`
	TotalVolume                  float64  `json:"total_volume"`
	CirculatingSupply            float64  `json:"circulating_supply"`
	TotalSupply                  float64  `json:"total_supply"`
	High24h                      float64  `json:"high_24h"`
	Low24h                       float64  `json:"low_24h"`
	ATH                          float64  `json:"ath"`
	ATHChangePercentage          float64  `json:"ath_change_percentage"`
	ATHDate                      string   `json:"ath_date"`
	ATL                          float64  `json:"atl"`
	ATLChangePercentage          float64  `json:"atl_change_percentage"`
	ATLDate                      string   `json:"atl_date"`
	ROI                          *roiDTO  `json:"roi"`
	Image                        string   `json:"image"`
	MarketCapRank                *int     `json:"market_cap_rank"`
	LastUpdated                  string   `json:"last_updated"`
	ContractAddress              string   `json:"contract_address,omitempty"`
}

type roiDTO struct {
	Times      float64 `json:"times"`
	Currency   string  `json:"currency"`
	Percentage float64 `json:"percentage"`
}
