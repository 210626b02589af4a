package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/ZhipengHe/nemdatatools/internal/timeutil"
	"github.com/pkg/errors"
)

// DataType describes one supported MMSDM table.
type DataType struct {

	// Name is the public name used in requests, e.g. "DISPATCHPRICE".
	Name string

	// Table is the MMSDM table name in archive file names.
	Table string

	// ReportType and ReportSubtype identify the report block inside an
	// MMS data model file (second and third fields of I and D rows).
	ReportType    string
	ReportSubtype string

	// TimestampCol and RegionCol are the report columns holding the
	// settlement timestamp and the region id.
	TimestampCol string
	RegionCol    string

	// Interval is the settlement interval length of the report.
	Interval time.Duration
}

// dataTypes is the registry of supported data types. PREDISPATCH and P5MIN
// are the public names of the regional price tables of those reports.
var dataTypes = map[string]DataType{
	"DISPATCHPRICE": {
		Name: "DISPATCHPRICE", Table: "DISPATCHPRICE",
		ReportType: "DISPATCH", ReportSubtype: "PRICE",
		TimestampCol: "SETTLEMENTDATE", RegionCol: "REGIONID",
		Interval: timeutil.DispatchInterval,
	},
	"DISPATCHREGIONSUM": {
		Name: "DISPATCHREGIONSUM", Table: "DISPATCHREGIONSUM",
		ReportType: "DISPATCH", ReportSubtype: "REGIONSUM",
		TimestampCol: "SETTLEMENTDATE", RegionCol: "REGIONID",
		Interval: timeutil.DispatchInterval,
	},
	"PREDISPATCH": {
		Name: "PREDISPATCH", Table: "PREDISPATCHPRICE",
		ReportType: "PREDISPATCH", ReportSubtype: "REGION_PRICES",
		TimestampCol: "DATETIME", RegionCol: "REGIONID",
		Interval: timeutil.TradingInterval,
	},
	"P5MIN": {
		Name: "P5MIN", Table: "P5MIN_REGIONSOLUTION",
		ReportType: "P5MIN", ReportSubtype: "REGIONSOLUTION",
		TimestampCol: "INTERVAL_DATETIME", RegionCol: "REGIONID",
		Interval: timeutil.DispatchInterval,
	},
	"TRADINGPRICE": {
		Name: "TRADINGPRICE", Table: "TRADINGPRICE",
		ReportType: "TRADING", ReportSubtype: "PRICE",
		TimestampCol: "SETTLEMENTDATE", RegionCol: "REGIONID",
		Interval: timeutil.TradingInterval,
	},
}

// NEMRegions are the region ids of the National Electricity Market.
var NEMRegions = []string{"NSW1", "QLD1", "SA1", "TAS1", "VIC1"}

// AvailableDataTypes returns the sorted list of supported data type names.
func AvailableDataTypes() []string {
	names := make([]string, 0, len(dataTypes))
	for name := range dataTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the data type registry entry for the given name.
func Lookup(name string) (DataType, error) {
	dt, ok := dataTypes[name]
	if !ok {
		return DataType{}, errors.Errorf("unknown data type : %v", name)
	}
	return dt, nil
}

// ValidRegion reports whether the given region id is a NEM region.
func ValidRegion(region string) bool {
	for _, r := range NEMRegions {
		if r == region {
			return true
		}
	}
	return false
}

// ValidateRegions checks all the given region ids against the NEM regions.
func ValidateRegions(regions []string) error {
	for _, region := range regions {
		if !ValidRegion(region) {
			return errors.Errorf("unknown NEM region : %v", region)
		}
	}
	return nil
}

// Resource locates one monthly archive file of a data type.
type Resource struct {
	DataType string
	Year     int
	Month    time.Month
	FileName string
	URL      string
}

// Resolve maps a data type and date range to the monthly MMSDM archive
// resources covering it. The archive publishes one zip per table per
// calendar month.
func Resolve(baseURL string, name string, start, end time.Time) ([]Resource, error) {
	dt, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, errors.Errorf("end date %v is before start date %v", timeutil.FormatDate(end), timeutil.FormatDate(start))
	}
	periods := timeutil.MonthlyPeriods(start, end)
	resources := make([]Resource, 0, len(periods))
	for _, p := range periods {
		fileName := fmt.Sprintf("PUBLIC_DVD_%v_%d%02d010000.zip", dt.Table, p.Year, int(p.Month))
		url := fmt.Sprintf("%v%d/MMSDM_%d_%02d/MMSDM_Historical_Data_SQLLoader/DATA/%v",
			baseURL, p.Year, p.Year, int(p.Month), fileName)
		resources = append(resources, Resource{
			DataType: dt.Name,
			Year:     p.Year,
			Month:    p.Month,
			FileName: fileName,
			URL:      url,
		})
	}
	return resources, nil
}
