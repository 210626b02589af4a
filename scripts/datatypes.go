package main

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/ZhipengHe/nemdatatools/internal/catalog"
	"github.com/rs/zerolog/log"
)

// This function will list all the supported data types and NEM regions and store them in a csv file.
// Users can look up to this csv file to give data type and region values in the app configuration.
// CSV file created at ./examples/datatypes.csv.
func main() {
	f, err := os.Create("./examples/datatypes.csv")
	if err != nil {
		log.Error().Err(err).Msg("csv file create")
		return
	}
	w := csv.NewWriter(f)
	defer w.Flush()
	defer f.Close()

	for _, name := range catalog.AvailableDataTypes() {
		dt, err := catalog.Lookup(name)
		if err != nil {
			log.Error().Err(err).Str("data_type", name).Msg("data type lookup")
			return
		}
		if err = w.Write([]string{"data_type", dt.Name, dt.Table, strconv.Itoa(int(dt.Interval.Minutes()))}); err != nil {
			log.Error().Err(err).Str("data_type", name).Msg("writing data types to csv")
			return
		}
	}

	for _, region := range catalog.NEMRegions {
		if err = w.Write([]string{"region", region}); err != nil {
			log.Error().Err(err).Str("region", region).Msg("writing regions to csv")
			return
		}
	}
}
