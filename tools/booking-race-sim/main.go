// booking-race-sim fires concurrent bookings at one slot and reports how many
// won. Against a healthy service exactly one request gets 201.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"golang.org/x/sync/errgroup"
)

type bookingRequest struct {
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	LocationID     string `json:"location_id,omitempty"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
}

type tally struct {
	created, conflict, other atomic.Int64
}

func main() {
	var (
		baseURL      = flag.String("base-url", runtime.Getenv("BASE_URL", "http://localhost:8083"), "booking-service base url")
		requests     = flag.Int("n", 50, "number of concurrent booking attempts")
		parallel     = flag.Int("parallel", 0, "max in-flight requests (0 = n)")
		practitioner = flag.String("practitioner", "prac-derm", "practitioner id")
		patient      = flag.String("patient", "pat-1", "patient id")
		location     = flag.String("location", "loc-main", "location id")
		date         = flag.String("date", "", "slot date YYYY-MM-DD (default: next Sunday)")
		start        = flag.String("start", "09:00", "slot start HH:MM")
		end          = flag.String("end", "09:30", "slot end HH:MM")
		timeout      = flag.Duration("timeout", 10*time.Second, "per-request timeout")
		grpcAddr     = flag.String("grpc-addr", runtime.Getenv("GRPC_ADDR", "localhost:9083"), "booking-service gRPC address for the health check (empty skips it)")
		healthWait   = flag.Duration("health-wait", 15*time.Second, "how long to wait for the service to report SERVING")
	)
	flag.Parse()

	if *requests <= 0 {
		fatal("-n must be positive")
	}
	if *date == "" {
		*date = nextSunday(time.Now()).Format(time.DateOnly)
	}
	body, err := json.Marshal(bookingRequest{
		PractitionerID: *practitioner,
		PatientID:      *patient,
		LocationID:     *location,
		Date:           *date,
		Start:          *start,
		End:            *end,
	})
	if err != nil {
		fatal(err.Error())
	}

	if *grpcAddr != "" {
		if err := waitHealthy(*grpcAddr, *healthWait); err != nil {
			fatal(err.Error())
		}
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/public/bookings"
	client := &http.Client{Timeout: *timeout}
	var t tally

	g, ctx := errgroup.WithContext(context.Background())
	if *parallel > 0 {
		g.SetLimit(*parallel)
	}
	began := time.Now()
	for i := 0; i < *requests; i++ {
		g.Go(func() error {
			status, err := post(ctx, client, url, body)
			switch {
			case err != nil:
				fmt.Fprintln(os.Stderr, "request failed:", err)
				t.other.Add(1)
			case status == http.StatusCreated:
				t.created.Add(1)
			case status == http.StatusConflict:
				t.conflict.Add(1)
			default:
				t.other.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Printf("slot=%s %s-%s attempts=%d created=%d conflict=%d other=%d elapsed=%s\n",
		*date, *start, *end, *requests, t.created.Load(), t.conflict.Load(), t.other.Load(),
		time.Since(began).Round(time.Millisecond))
	if t.created.Load() > 1 {
		fatal("double booking detected")
	}
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func waitHealthy(addr string, wait time.Duration) error {
	conn, err := grpcx.Dial(addr, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return grpcx.WaitServing(ctx, conn, "clinicbook.booking", 250*time.Millisecond)
}

func nextSunday(now time.Time) time.Time {
	days := (7 - int(now.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
