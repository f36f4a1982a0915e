package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/omeid/uconfig"
	"github.com/omeid/uconfig/plugins"
	"github.com/omeid/uconfig/plugins/file"
)

// configFilename is the filename of the config file automatically loaded,
// if present, for tunables beyond the two required positional arguments.
var configFilename = "config.json"

type config struct {
	Metrics struct {
		Port string `default:"9090"`
	}
	Log struct {
		Human bool `default:"false"`
		Debug bool `default:"false"`
	}
	Ingest struct {
		FlushInterval string `default:"5s"`
		QueueSize     int    `default:"1024"`
		Subject       string `default:"zilch.events"`
	}
}

func setupConfig() *config {
	fileBytes, err := os.ReadFile(configFilename)
	fileStr := string(fileBytes)
	var pg []plugins.Plugin
	if err == nil {
		fileStr = os.ExpandEnv(fileStr)
		pg = append(pg, file.NewReader(strings.NewReader(fileStr), json.Unmarshal))
	}

	conf := &config{}
	c, err := uconfig.Classic(&conf, file.Files{}, pg...)
	if err != nil {
		fmt.Printf("invalid configuration: %s", err)
		c.Usage()
		os.Exit(1)
	}

	return conf
}
