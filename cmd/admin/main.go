package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/pgfinder/internal/admin"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if err := admin.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}

}
