package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ZhipengHe/nemdatatools/internal/config"
	"github.com/ZhipengHe/nemdatatools/internal/initializer"
	_ "github.com/go-sql-driver/mysql"
	jsoniter "github.com/json-iterator/go"
)

// main reads the user defined JSON config file and starts the app.
// Config file path can be given as a command line argument, otherwise
// the app looks for it in the current directory.
func main() {
	cfgPath := "./config.json"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		fmt.Println("ERROR : Not able to find config file :", cfgPath)
		return
	}
	var cfg config.Config
	if err = jsoniter.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		cfgFile.Close()
		fmt.Println("ERROR : Not able to parse JSON from config file :", cfgPath)
		return
	}
	cfgFile.Close()

	err = initializer.Start(context.Background(), &cfg)
	if err != nil {
		fmt.Println("ERROR :", err)
		os.Exit(1)
	}
}
