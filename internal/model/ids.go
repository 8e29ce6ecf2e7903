// internal/model/ids.go
package model

// EIA series identifiers (v2 API facets).
const (
	EIAWTISpot          = "PET.RWTC.D"
	EIABrentSpot        = "PET.RBRTE.D"
	EIAHenryHub         = "NG.RNGWHHD.D"
	EIACrudeStocks      = "PET.WCESTUS1.W"
	EIAGasolineStocks   = "PET.WGTSTUS1.W"
	EIADistillateStocks = "PET.WDISTUS1.W"
)

// FRED series identifiers.
const (
	FREDWTI          = "DCOILWTICO"
	FREDBrent        = "DCOILBRENTEU"
	FREDHenryHub     = "DHHNGSP"
	FREDGDP          = "GDP"
	FREDCPI          = "CPIAUCSL"
	FREDUnemployment = "UNRATE"
	FREDDollarIndex  = "DTWEXBGS"
	FREDSP500        = "SP500"
	FREDVIX          = "VIXCLS"
)

// World Bank indicator codes.
const (
	WBGDP        = "NY.GDP.MKTP.CD"
	WBOilRents   = "NY.GDP.PETR.RT.ZS"
	WBPopulation = "SP.POP.TOTL"
)

// OilPrice API commodity codes.
const (
	OilPriceWTI        = "WTI_USD"
	OilPriceBrent      = "BRENT_CRUDE_USD"
	OilPriceNaturalGas = "NATURAL_GAS_USD"
)
