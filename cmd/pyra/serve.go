package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"pyra-compiler/pkg/config"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run a local compile-as-a-service HTTP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := addr
			if listenAddr == "" {
				listenAddr = config.AppConfig.Serve.Addr
			}

			r := chi.NewRouter()
			r.Post("/compile", compileHandler)

			log.Infof("listening on %s", listenAddr)
			return http.ListenAndServe(listenAddr, r)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// compileHandler runs the pipeline over the request body and responds
// with the deploy bytecode and ABI JSON. It never harden/guards beyond
// what the loaded configuration specifies.
func compileHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := buildOptions{
		Harden:          config.AppConfig.Build.Harden,
		ReentrancyGuard: config.AppConfig.Build.ReentrancyGuard,
		LockSlot:        config.AppConfig.Build.LockSlot,
	}

	res, err := compile(string(body), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"bytecode":%q,"abi":%s}`, res.DeployHex, res.ABI)
}
