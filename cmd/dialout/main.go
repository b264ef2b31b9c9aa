// Command dialout submits an outbound call job to the dispatch hub.
// The next free attendant picks it up, dials the number, and runs the
// outbound behavior profile.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nordvoice/attendant/internal/attendant/dispatch"
)

func main() {
	var (
		hubURL  = flag.String("hub", "http://localhost:9090/api/v1/jobs", "Dispatch hub job submission endpoint")
		number  = flag.String("number", "", "Phone number to dial (E.164)")
		roomID  = flag.String("room", "", "Room ID for the call (generated when empty)")
		timeout = flag.Duration("timeout", 10*time.Second, "Submission timeout")
	)
	flag.Parse()

	if *number == "" {
		fmt.Fprintln(os.Stderr, "dialout: -number is required")
		flag.Usage()
		os.Exit(2)
	}

	meta, err := json.Marshal(map[string]string{
		"phone_number": *number,
		"direction":    "outbound",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dialout: encode metadata: %v\n", err)
		os.Exit(1)
	}

	job := dispatch.Job{
		ID:       uuid.New().String(),
		RoomID:   *roomID,
		Metadata: string(meta),
	}
	if job.RoomID == "" {
		job.RoomID = "outbound-" + job.ID[:8]
	}

	body, err := json.Marshal(job)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dialout: encode job: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Post(*hubURL, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dialout: submit job: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fmt.Fprintf(os.Stderr, "dialout: hub returned %s: %s\n", resp.Status, msg)
		os.Exit(1)
	}

	fmt.Printf("Job %s submitted: dialing %s in room %s\n", job.ID, *number, job.RoomID)
}
