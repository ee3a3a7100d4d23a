package main

import (
	"flag"
	"fmt"
	"os"
)

type args struct {
	isInit   bool
	dataDir  string
	dbSuffix string
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Poll Node - fee-gated polls with relayed, signature-authorized votes.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	isInit := flag.Bool("init", false, "Write default config files and exit")
	dataDir := flag.String("data-dir", "data", "Directory holding config and the flatfs journal")
	dbSuffix := flag.String("db-suffix", "", "Optional database name suffix")

	flag.Parse()

	if *dataDir == "" {
		return args{}, fmt.Errorf("data-dir must not be empty")
	}

	return args{
		*isInit,
		*dataDir,
		*dbSuffix,
	}, nil
}
