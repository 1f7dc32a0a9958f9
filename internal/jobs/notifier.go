package jobs

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gradelab/gograder/internal/models"
)

// Payload is the webhook body posted when a job completes.
type Payload struct {
	Event   string                `json:"event"`
	JobID   string                `json:"job_id"`
	Results []models.GradedResult `json:"results"`
	Summary *models.JobSummary    `json:"summary"`
}

// Notifier delivers completion webhooks in the background. Deliveries run
// concurrently up to a fixed bound; Stop drains whatever is in flight.
// A delivery makes at most three attempts with exponential backoff and
// gives up silently after that (logged only).
type Notifier struct {
	client      *http.Client
	maxAttempts int
	sem         chan struct{}
	wg          sync.WaitGroup

	// backoffUnit is scaled down in tests.
	backoffUnit time.Duration
}

func NewNotifier(timeout time.Duration, maxInFlight int) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	return &Notifier{
		client:      &http.Client{Timeout: timeout},
		maxAttempts: 3,
		sem:         make(chan struct{}, maxInFlight),
		backoffUnit: time.Second,
	}
}

// Dispatch queues one delivery. The caller is not blocked by retries; only
// by the in-flight bound.
func (n *Notifier) Dispatch(url string, payload Payload) {
	n.wg.Add(1)
	n.sem <- struct{}{}
	go func() {
		defer n.wg.Done()
		defer func() { <-n.sem }()
		n.deliver(url, payload)
	}()
}

// Stop waits for all queued deliveries to finish.
func (n *Notifier) Stop() {
	n.wg.Wait()
}

func (n *Notifier) deliver(url string, payload Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notifier: marshal payload for job %s: %v", payload.JobID, err)
		return
	}

	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if n.post(url, body) {
			log.Printf("notifier: webhook sent to %q (attempt %d)", url, attempt)
			return
		}
		if attempt < n.maxAttempts {
			time.Sleep(time.Duration(1<<attempt) * n.backoffUnit)
		}
	}
	log.Printf("notifier: webhook to %q failed after %d attempts", url, n.maxAttempts)
}

func (n *Notifier) post(url string, body []byte) bool {
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("notifier: webhook attempt failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("notifier: webhook attempt got HTTP %d", resp.StatusCode)
		return false
	}
	return true
}
