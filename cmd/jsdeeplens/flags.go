package main

import (
	"flag"
)

type AppFlags struct {
	ProjectName      string
	GlobalConfigFile string
	ListenAddress    string
	ExportFile       string
}

func ParseFlags() AppFlags {
	projectName := flag.String("project", "", "Project name; all records, scripts and settings live under <base_dir>/<project>. Overrides the config file.")
	projectNameAlias := flag.String("p", "", "Alias for -project")

	globalConfigFile := flag.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := flag.String("c", "", "Alias for -config")

	listenAddress := flag.String("listen", "", "Address the HTTP server listens on, e.g. 127.0.0.1:3000. Overrides the config file.")
	listenAddressAlias := flag.String("l", "", "Alias for -listen")

	exportFile := flag.String("export", "", "Write all findings to this parquet file name in the project's export directory and exit.")

	flag.Parse()

	flags := AppFlags{ExportFile: *exportFile}

	if *projectName != "" {
		flags.ProjectName = *projectName
	} else if *projectNameAlias != "" {
		flags.ProjectName = *projectNameAlias
	}

	if *globalConfigFile != "" {
		flags.GlobalConfigFile = *globalConfigFile
	} else if *globalConfigFileAlias != "" {
		flags.GlobalConfigFile = *globalConfigFileAlias
	}

	if *listenAddress != "" {
		flags.ListenAddress = *listenAddress
	} else if *listenAddressAlias != "" {
		flags.ListenAddress = *listenAddressAlias
	}

	return flags
}
