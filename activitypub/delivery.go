package activitypub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

const deliveryQueueSize = 1024
const deliveryAttemptTimeout = 30 * time.Second

// deliveryJob is one signed POST to one inbox. Jobs are ephemeral: they
// exist only in the queue and are discarded after success or after the
// retry policy is exhausted.
type deliveryJob struct {
	inboxURI      string
	body          []byte
	keyId         string
	privateKeyPem string
}

// Deliverer ships locally-produced activities to remote inboxes on a
// worker pool sized independently from inbound concurrency, so one slow
// remote cannot stall inbound processing or other deliveries. Delivery is
// best-effort: failures are logged, never surfaced to the local mutation
// that triggered them.
type Deliverer struct {
	client      *http.Client
	jobs        chan deliveryJob
	wg          sync.WaitGroup
	maxAttempts int
	backoffBase time.Duration

	// mu orders Enqueue sends against the close in Stop; the router may
	// still be serving inbound requests when shutdown begins.
	mu     sync.Mutex
	closed bool
}

func NewDeliverer(conf *util.AppConfig) *Deliverer {
	return &Deliverer{
		client:      &http.Client{Timeout: deliveryAttemptTimeout},
		jobs:        make(chan deliveryJob, deliveryQueueSize),
		maxAttempts: conf.Conf.DeliveryMaxAttempts,
		backoffBase: time.Duration(conf.Conf.DeliveryBackoffSeconds) * time.Second,
	}
}

// Start launches the worker pool.
func (d *Deliverer) Start(workers int) {
	log.Printf("DeliveryWorker: starting %d workers", workers)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.deliverWithRetry(job)
			}
		}()
	}
}

// Stop drains the queue and waits for in-flight deliveries. Enqueue
// calls arriving after Stop drop their jobs with a log line.
func (d *Deliverer) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

// Enqueue serializes the activity once and queues one job per target
// inbox. Targets are independent: a full queue or a failing target drops
// that one delivery with a log line and never blocks the others.
func (d *Deliverer) Enqueue(activity interface{}, sender *domain.Actor, inboxes []string) {
	if sender.PrivateKeyPem == "" {
		log.Printf("DeliveryWorker: %s has no private key, dropping delivery", sender.ActorURI)
		return
	}

	body, err := json.Marshal(activity)
	if err != nil {
		log.Printf("DeliveryWorker: failed to marshal activity: %v", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("DeliveryWorker: stopped, dropping %d deliveries", len(inboxes))
		return
	}

	for _, inbox := range inboxes {
		job := deliveryJob{
			inboxURI:      inbox,
			body:          body,
			keyId:         sender.KeyId(),
			privateKeyPem: sender.PrivateKeyPem,
		}
		select {
		case d.jobs <- job:
		default:
			log.Printf("DeliveryWorker: queue full, dropping delivery to %s", inbox)
		}
	}
}

// deliverWithRetry attempts a single job with exponential backoff up to
// the configured attempt count, then gives up.
func (d *Deliverer) deliverWithRetry(job deliveryJob) {
	attempt := 0
	operation := func() error {
		attempt++
		err := d.deliverOnce(job)
		if err != nil {
			log.Printf("DeliveryWorker: delivery to %s failed (attempt %d): %v", job.inboxURI, attempt, err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.backoffBase
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithMaxRetries(bo, uint64(d.maxAttempts-1)))
	if err != nil {
		log.Printf("DeliveryWorker: giving up on delivery to %s after %d attempts", job.inboxURI, attempt)
		return
	}
	log.Printf("DeliveryWorker: delivered to %s", job.inboxURI)
}

// deliverOnce signs and POSTs the activity to one inbox, time-bounded so
// a dead remote counts as a failed attempt instead of hanging a worker.
func (d *Deliverer) deliverOnce(job deliveryJob) error {
	privateKey, err := ParsePrivateKey(job.privateKeyPem)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to parse private key: %w", err))
	}

	hash := sha256.Sum256(job.body)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	ctx, cancel := context.WithTimeout(context.Background(), deliveryAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.inboxURI, bytes.NewReader(job.body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", util.Name+"/"+util.Version+" ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	if err := SignRequest(req, privateKey, job.keyId); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to sign request: %w", err))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	return nil
}

// CollectInboxes turns a set of target actors into a deduplicated inbox
// list, preferring a server's shared inbox over per-actor inboxes so the
// same server is never delivered to twice. Local actors are skipped.
func CollectInboxes(actors []domain.Actor) []string {
	seen := make(map[string]bool)
	var inboxes []string
	for _, a := range actors {
		if a.Local {
			continue
		}
		inbox := a.InboxURI
		if a.SharedInboxURI != "" {
			inbox = a.SharedInboxURI
		}
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true
		inboxes = append(inboxes, inbox)
	}
	return inboxes
}
