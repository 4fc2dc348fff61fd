// This command is only used for local testing: it performs a single exchange
// against an authorization service and prints the resulting token, without
// caching or proxying.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/chinmina/chinmina-gateway/internal/config"
	"github.com/chinmina/chinmina-gateway/internal/exchange"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Exchange   config.ExchangeConfig
	Credential string `env:"UTIL_CREDENTIAL, required"`
	Path       string `env:"UTIL_PATH, default=/"`
}

func main() {
	cfg := Config{}
	err := envconfig.Process(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Exchange.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid exchange configuration: %v\n", err)
		os.Exit(1)
	}

	client := exchange.NewHTTPClient(cfg.Exchange, http.DefaultClient)

	token, err := client.Exchange(context.Background(), cfg.Credential, cfg.Path)
	if err != nil {
		var failure *exchange.FailureError
		if errors.As(err, &failure) {
			fmt.Fprintf(os.Stderr, "exchange refused (%s, status %d)\n", failure.Kind, failure.StatusCode)
			os.Exit(2)
		}

		fmt.Fprintf(os.Stderr, "error exchanging credential: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s", token)
}
