package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newEventsReceiverCommand runs a tiny HTTP endpoint that prints posted
// analysis events. Point events.webhook_url at it to watch the event stream
// during local development.
func newEventsReceiverCommand() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "events-receiver",
		Short: "Run a webhook receiver that prints analysis events",
		RunE: func(cmd *cobra.Command, args []string) error {
			mux := http.NewServeMux()
			mux.HandleFunc("/events", handleEvent)
			mux.HandleFunc("/", handleEvent)

			srv := &http.Server{
				Addr:              addrFlag,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			log.Printf("events receiver listening on %s (POST JSON to /events)", addrFlag)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", ":8099", "Listen address")

	return cmd
}

func handleEvent(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	log.Printf("received analysis event: path=%s len=%d\n%s", r.URL.Path, len(body), string(body))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}
