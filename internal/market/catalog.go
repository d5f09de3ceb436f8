package market

import "sort"

// IndexSpec names one index on the dashboard. Symbol is the chart ticker;
// NSEName is the exchange's own name and is empty for indices NSE does not publish.
type IndexSpec struct {
	Name    string
	Symbol  string
	NSEName string
}

// DefaultIndices are the dashboard indices in display order
func DefaultIndices() []IndexSpec {
	return []IndexSpec{
		{Name: "Nifty 50", Symbol: "^NSEI", NSEName: "NIFTY 50"},
		{Name: "Sensex", Symbol: "^BSESN"},
		{Name: "Bank Nifty", Symbol: "^NSEBANK", NSEName: "NIFTY BANK"},
		{Name: "Nifty Midcap 50", Symbol: "^NSEMDCP50", NSEName: "NIFTY MIDCAP 50"},
		{Name: "Nifty Total Market", Symbol: "NIFTY_TOTAL_MKT.NS", NSEName: "NIFTY TOTAL MARKET"},
		{Name: "Dow Jones", Symbol: "^DJI"},
		{Name: "NASDAQ", Symbol: "^IXIC"},
		{Name: "India VIX", Symbol: "^INDIAVIX", NSEName: "INDIA VIX"},
		{Name: "Nifty IT", Symbol: "^CNXIT", NSEName: "NIFTY IT"},
		{Name: "Nifty Pharma", Symbol: "^CNXPHARMA", NSEName: "NIFTY PHARMA"},
		{Name: "Nifty Auto", Symbol: "^CNXAUTO", NSEName: "NIFTY AUTO"},
		{Name: "Nifty FMCG", Symbol: "^CNXFMCG", NSEName: "NIFTY FMCG"},
		{Name: "Nifty Metal", Symbol: "^CNXMETAL", NSEName: "NIFTY METAL"},
		{Name: "Nifty Realty", Symbol: "^CNXREALTY", NSEName: "NIFTY REALTY"},
		{Name: "Nifty Energy", Symbol: "^CNXENERGY", NSEName: "NIFTY ENERGY"},
	}
}

// CommoditySpec names one commodity, crypto asset or currency pair
type CommoditySpec struct {
	Name   string
	Label  string
	Symbol string
}

// DefaultCommodities are the dashboard commodities in display order
func DefaultCommodities() []CommoditySpec {
	return []CommoditySpec{
		{Name: "oil", Label: "Crude Oil", Symbol: "CL=F"},
		{Name: "gold", Label: "Gold", Symbol: "GC=F"},
		{Name: "silver", Label: "Silver", Symbol: "SI=F"},
		{Name: "btc", Label: "Bitcoin", Symbol: "BTC-USD"},
		{Name: "eth", Label: "Ethereum", Symbol: "ETH-USD"},
		{Name: "usd_inr", Label: "USD/INR", Symbol: "INR=X"},
	}
}

// ListSpec locates an index's membership: the archive CSV and the API index name
type ListSpec struct {
	CSV     string
	APIName string
}

// Stock list names with special handling
const (
	Nifty50          = "Nifty 50"
	NiftyBank        = "Nifty Bank"
	NiftyPSUBank     = "Nifty PSU Bank"
	NiftyPrivateBank = "Nifty Private Bank"
)

// DefaultStockLists maps list names to their sources. Nifty Private Bank is
// derived from Nifty Bank and Nifty PSU Bank and has no entry.
func DefaultStockLists() map[string]ListSpec {
	return map[string]ListSpec{
		Nifty50:              {CSV: "ind_nifty50list.csv", APIName: "NIFTY 50"},
		NiftyBank:            {CSV: "ind_niftybanklist.csv", APIName: "NIFTY BANK"},
		NiftyPSUBank:         {CSV: "ind_niftypsubanklist.csv", APIName: "NIFTY PSU BANK"},
		"Nifty IT":           {CSV: "ind_niftyitlist.csv", APIName: "NIFTY IT"},
		"Nifty Pharma":       {CSV: "ind_niftypharmalist.csv", APIName: "NIFTY PHARMA"},
		"Nifty Auto":         {CSV: "ind_niftyautolist.csv", APIName: "NIFTY AUTO"},
		"Nifty FMCG":         {CSV: "ind_niftyfmcglist.csv", APIName: "NIFTY FMCG"},
		"Nifty Metal":        {CSV: "ind_niftymetallist.csv", APIName: "NIFTY METAL"},
		"Nifty Realty":       {CSV: "ind_niftyrealtylist.csv", APIName: "NIFTY REALTY"},
		"Nifty Energy":       {CSV: "ind_niftyenergylist.csv", APIName: "NIFTY ENERGY"},
		"Nifty Midcap 50":    {CSV: "ind_niftymidcap50list.csv", APIName: "NIFTY MIDCAP 50"},
		"Nifty Smallcap 50":  {CSV: "ind_niftysmallcap50list.csv", APIName: "NIFTY SMALLCAP 50"},
		"Nifty Total Market": {CSV: "ind_niftytotalmarket_list.csv", APIName: "NIFTY TOTAL MARKET"},
	}
}

// FallbackNifty50 is served when no source can list the Nifty 50
var FallbackNifty50 = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "ICICIBANK.NS", "HINDUNILVR.NS",
	"INFY.NS", "ITC.NS", "KOTAKBANK.NS", "BHARTIARTL.NS", "LT.NS", "SBIN.NS",
	"BAJFINANCE.NS", "HCLTECH.NS", "ASIANPAINT.NS", "MARUTI.NS", "TITAN.NS",
	"SUNPHARMA.NS", "AXISBANK.NS", "NTPC.NS", "NESTLEIND.NS", "ULTRACEMCO.NS",
	"TATAMOTORS.NS", "POWERGRID.NS", "BAJAJ-AUTO.NS", "TATASTEEL.NS", "JSWSTEEL.NS",
	"GRASIM.NS", "ADANIPORTS.NS", "TECHM.NS", "BAJAJFINSV.NS", "WIPRO.NS",
	"UPL.NS", "DRREDDY.NS", "CIPLA.NS", "HINDALCO.NS", "TATACONSUM.NS",
	"BPCL.NS", "SHREECEM.NS", "INDUSINDBK.NS", "IOC.NS", "ONGC.NS",
	"COALINDIA.NS", "SBILIFE.NS", "HDFCLIFE.NS", "DIVISLAB.NS", "EICHERMOT.NS",
	"HEROMOTOCO.NS", "BRITANNIA.NS",
}

func listNames(lists map[string]ListSpec) []string {
	names := make([]string, 0, len(lists)+1)
	for name := range lists {
		names = append(names, name)
	}
	names = append(names, NiftyPrivateBank)
	sort.Strings(names)
	return names
}
