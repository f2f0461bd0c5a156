package dex

// searchResponse mirrors the DEX indexer's
// GET {base}/search?q=SOLANA response shape.
type searchResponse struct {
	Pairs []pairDTO `json:"pairs"`
}

type pairDTO struct {
	BaseToken   baseTokenDTO    `json:"baseToken"`
	PriceUSD    stringOrFloat   `json:"priceUsd"`
	PriceChange priceChangeDTO  `json:"priceChange"`
	FDV         float64         `json:"fdv"`
	Volume      volumeDTO       `json:"volume"`
	Liquidity   liquidityDTO    `json:"liquidity"`
	Txns        txnsDTO         `json:"txns"`
	DexID       string          `json:"dexId"`
	URL         string          `json:"url"`
	Info        infoDTO         `json:"info"`
	PairCreated int64           `json:"pairCreatedAt"`
}

type baseTokenDTO struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type priceChangeDTO struct {
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type volumeDTO struct {
	H24 float64 `json:"h24"`
}

type liquidityDTO struct {
	USD float64 `json:"usd"`
}

type txnsDTO struct {
	H24 txnCountDTO `json:"h24"`
}

type txnCountDTO struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

type infoDTO struct {
	ImageURL string `json:"imageUrl"`
}
