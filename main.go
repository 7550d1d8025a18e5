package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/thavlik/grover-packer/packer"
)

// RunConfig is the body of a /run request.
type RunConfig struct {
	Problem    string `json:"problem"`
	Iterations int    `json:"iterations"`
	Seed       int    `json:"seed"`
}

type server struct {
	config
	clientset kubernetes.Interface
	requests  map[string]chan<- interface{}
	requestsL sync.Mutex
	handler   *http.ServeMux
	problems  problemStore
	results   resultBroker
	exit      chan<- error
}

func (s *server) createSolverPodObject(
	config *RunConfig,
	correlationID string,
) (*v1.Pod, error) {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-%s", s.appLabel, correlationID[:8]),
			Namespace: s.namespace,
			Labels: map[string]string{
				"app": s.appLabel,
			},
		},
		Spec: v1.PodSpec{
			RestartPolicy: v1.RestartPolicyNever,
			Containers: []v1.Container{
				v1.Container{
					ImagePullPolicy: v1.PullAlways,
					Name:            "solver",
					Image:           s.image,
					Command: []string{
						"./solve",
						"--correlation_id",
						correlationID,
						"--iterations",
						fmt.Sprintf("%d", config.Iterations),
						"--seed",
						fmt.Sprintf("%d", config.Seed),
					},
					Resources: v1.ResourceRequirements{
						Limits: map[v1.ResourceName]resource.Quantity{
							"cpu":    resource.MustParse("1000m"),
							"memory": resource.MustParse("2Gi"),
						},
					},
					Env: []v1.EnvVar{
						v1.EnvVar{
							Name:  "PACKER_OPERATOR",
							Value: s.operatorAddress,
						},
					},
				},
			},
		},
	}, nil
}

// runSolver stores the canonical form of the problem where the solver pod
// can fetch it, launches the pod and waits for its result.
func (s *server) runSolver(config *RunConfig, model *packer.EnergyModel) ([]byte, error) {
	correlationID := uuid.New().String()
	log.Printf("Running solver, correlationID=%s", correlationID)

	problem := new(bytes.Buffer)
	if err := packer.Write(problem, model); err != nil {
		return nil, fmt.Errorf("write problem: %v", err)
	}
	if err := s.problems.putProblem(correlationID, problem.Bytes()); err != nil {
		return nil, fmt.Errorf("store problem: %v", err)
	}
	defer func() {
		if err := s.problems.deleteProblem(correlationID); err != nil {
			log.Printf("Warning: failed to delete problem %s: %v", correlationID, err)
		}
	}()

	// Register before the pod exists so an early callback is not lost.
	req := make(chan interface{}, 1)
	s.requestsL.Lock()
	s.requests[correlationID] = req
	s.requestsL.Unlock()
	defer func() {
		s.requestsL.Lock()
		delete(s.requests, correlationID)
		s.requestsL.Unlock()
	}()

	pod, err := s.createSolverPodObject(config, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pod: %v", err)
	}
	if _, err := s.clientset.CoreV1().Pods(s.namespace).Create(
		context.TODO(),
		pod,
		metav1.CreateOptions{},
	); err != nil {
		return nil, fmt.Errorf("create pod: %v", err)
	}
	defer func() {
		// Clean up pod at the end
		if err := s.clientset.CoreV1().Pods(s.namespace).Delete(
			context.TODO(),
			pod.Name,
			&metav1.DeleteOptions{},
		); err != nil {
			log.Printf("Warning: failed to delete pod: %v", err)
		} else {
			log.Printf("Deleted pod %s", pod.Name)
		}
	}()
	log.Printf("Pod %s created.", pod.Name)

	select {
	case result := <-req:
		if err, ok := result.(error); ok && err != nil {
			return nil, err
		}
		if body, ok := result.([]byte); ok {
			return body, nil
		}
		return nil, fmt.Errorf("malformed response from channel %T(%v)", result, result)
	case <-time.After(s.timeout):
		return nil, fmt.Errorf("timed out after %v", s.timeout)
	}
}

func newServer(cfg config) (*server, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("in-cluster config: %v", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("clientset: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.redisURI,
		Password: "", // no password set
		DB:       0,  // use default DB
	})
	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("redis: %v", err)
	}

	pubsub := client.Subscribe(pubsubChannel)
	// Wait for confirmation that subscription is created before publishing anything.
	if _, err := pubsub.Receive(); err != nil {
		return nil, fmt.Errorf("pubsub: %v", err)
	}
	exit := make(chan error, 1)
	s := newServerWith(
		cfg,
		clientset,
		&redisProblemStore{redis: client, ttl: cfg.timeout},
		&redisResultBroker{redis: client, ttl: cfg.pruneResultTimeout},
	)
	s.exit = exit
	go s.listenForPubSub(pubsub.Channel(), exit)
	return s, nil
}

func newServerWith(
	cfg config,
	clientset kubernetes.Interface,
	problems problemStore,
	results resultBroker,
) *server {
	s := &server{
		config:    cfg,
		clientset: clientset,
		requests:  make(map[string]chan<- interface{}),
		handler:   http.NewServeMux(),
		problems:  problems,
		results:   results,
	}
	s.buildRoutes()
	return s
}

func (s *server) handleBroadcastPayload(correlationID string) error {
	s.requestsL.Lock()
	req, ok := s.requests[correlationID]
	if !ok {
		s.requestsL.Unlock()
		return errRequestNotFound
	}
	delete(s.requests, correlationID)
	s.requestsL.Unlock()
	defer close(req)

	payload, err := s.results.takeResult(correlationID)
	if err != nil {
		log.Printf("Error retrieving result: %v", err)
		req <- err
		return err
	}
	if payload.Success {
		req <- []byte(payload.Data)
		log.Printf("%s fulfilled from remote", correlationID)
	} else {
		req <- fmt.Errorf("%s", payload.ErrorMsg)
		log.Printf("%s remote error: %v", correlationID, payload.ErrorMsg)
	}
	return nil
}

func (s *server) listenForPubSub(
	ch <-chan *redis.Message,
	exit <-chan error,
) {
	for {
		select {
		case <-exit:
			return
		case msg := <-ch:
			if msg.Channel == pubsubChannel {
				if err := s.handleBroadcastPayload(
					msg.Payload,
				); err != nil && err != errRequestNotFound {
					log.Printf("error handling broadcast payload: %v", err)
				}
			}
		}
	}
}

func getCorrelationIDFromRequest(r *http.Request) (string, error) {
	newValues, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return "", fmt.Errorf("failed to parse query: %v", err)
	}
	correlationIDs, ok := newValues["correlation_id"]
	if !ok || len(correlationIDs) == 0 {
		return "", fmt.Errorf("missing correlation_id")
	}
	return correlationIDs[0], nil
}

var errRequestNotFound = fmt.Errorf("request not found")

// fullfillLocal hands result (a []byte or an error) to a request waiting
// on this replica.
func (s *server) fullfillLocal(correlationID string, result interface{}) error {
	s.requestsL.Lock()
	defer s.requestsL.Unlock()
	req, ok := s.requests[correlationID]
	if !ok {
		return errRequestNotFound
	}
	delete(s.requests, correlationID)
	req <- result
	close(req)
	return nil
}

// loadProblem parses a packer problem from a request body.
func loadProblem(body []byte) (*packer.EnergyModel, error) {
	lines, err := packer.ReadLines(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("read problem: %v", err)
	}
	return packer.Load(lines)
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	return nil
}

func (s *server) handleLoad() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusCode := http.StatusInternalServerError
		if err := func() error {
			if r.Method != http.MethodPost {
				statusCode = http.StatusMethodNotAllowed
				return fmt.Errorf("expected POST, got %s", r.Method)
			}
			body, err := ioutil.ReadAll(r.Body)
			if err != nil {
				statusCode = http.StatusBadRequest
				return fmt.Errorf("body: %v", err)
			}
			model, err := loadProblem(body)
			if err != nil {
				statusCode = http.StatusBadRequest
				return err
			}
			summary, err := packer.Summarize(model)
			if err != nil {
				return err
			}
			log.Printf("Loaded problem, %v", summary)
			return writeJSON(w, summary)
		}(); err != nil {
			log.Printf("%v: %v", r.RequestURI, err)
			w.WriteHeader(statusCode)
			w.Write([]byte(err.Error()))
		}
	}
}

func (s *server) handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusCode := http.StatusInternalServerError
		if err := func() error {
			body, err := ioutil.ReadAll(r.Body)
			if err != nil {
				statusCode = http.StatusBadRequest
				return fmt.Errorf("body: %v", err)
			}
			config := &RunConfig{}
			if err := json.Unmarshal(body, config); err != nil {
				statusCode = http.StatusBadRequest
				return fmt.Errorf("unmarshal: %v", err)
			}
			if config.Problem == "" {
				statusCode = http.StatusBadRequest
				return fmt.Errorf("missing problem")
			}
			if config.Iterations < 1 {
				statusCode = http.StatusBadRequest
				return fmt.Errorf("expected >0 iterations, got %d", config.Iterations)
			}
			if config.Seed < -1 {
				statusCode = http.StatusBadRequest
				return fmt.Errorf("invalid seed")
			} else if config.Seed == 0 {
				// Default seed to -1, which is random
				config.Seed = -1
			}
			model, err := loadProblem([]byte(config.Problem))
			if err != nil {
				statusCode = http.StatusBadRequest
				return err
			}
			size, err := packer.SolutionSpaceSize(model)
			if err != nil {
				statusCode = http.StatusBadRequest
				return err
			}
			log.Printf("Received run request, positions=%d, solutions=%s, seed=%d",
				len(model.Positions()), size, config.Seed)
			body, err = s.runSolver(config, model)
			if err != nil {
				return err
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
			return nil
		}(); err != nil {
			log.Printf("%v: %v", r.RequestURI, err)
			w.WriteHeader(statusCode)
			w.Write([]byte(err.Error()))
		}
	}
}

func (s *server) handleProblem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusCode := http.StatusInternalServerError
		if err := func() error {
			correlationID, err := getCorrelationIDFromRequest(r)
			if err != nil {
				statusCode = http.StatusBadRequest
				return err
			}
			data, err := s.problems.getProblem(correlationID)
			if err == errProblemNotFound {
				statusCode = http.StatusNotFound
				return err
			} else if err != nil {
				return err
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write(data)
			return nil
		}(); err != nil {
			log.Printf("%v: %v", r.RequestURI, err)
			w.WriteHeader(statusCode)
			w.Write([]byte(err.Error()))
		}
	}
}

func (s *server) handleComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := func() error {
			correlationID, err := getCorrelationIDFromRequest(r)
			if err != nil {
				return err
			}
			log.Printf("Received completion request, correlationID=%s", correlationID)
			if err := r.ParseMultipartForm(s.multipartUploadMemory); err != nil {
				return fmt.Errorf("multipart form: %v", err)
			}
			file, _, err := r.FormFile("data")
			if err != nil {
				return fmt.Errorf("form file: %v", err)
			}
			defer file.Close()
			data, err := ioutil.ReadAll(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %v", err)
			}

			go func() {
				// Do not wait to return a response
				if err := s.fullfillLocal(correlationID, data); err == errRequestNotFound {
					if err := s.results.publishResult(correlationID, &BroadcastPayload{
						Data:    data,
						Success: true,
					}); err != nil {
						log.Printf("publish result: %v", err)
						return
					}
					log.Printf("%s fulfilled remotely", correlationID)
				} else if err != nil {
					log.Printf("fulfillLocal: %v", err)
				} else {
					log.Printf("%s fulfilled locally", correlationID)
				}
			}()

			return nil
		}(); err != nil {
			log.Printf("%v: %v", r.RequestURI, err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func (s *server) handleError() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := func() error {
			body, err := ioutil.ReadAll(r.Body)
			if err != nil {
				return fmt.Errorf("read body: %v", err)
			}
			doc := make(map[string]interface{})
			if err := json.Unmarshal(body, &doc); err != nil {
				return fmt.Errorf("json: %v", err)
			}
			msg, ok := doc["msg"].(string)
			if !ok {
				return fmt.Errorf("missing msg")
			}
			correlationID, ok := doc["correlation_id"].(string)
			if !ok {
				return fmt.Errorf("missing correlationID")
			}
			log.Printf("/error %s", msg)
			if err := s.fullfillLocal(
				correlationID,
				fmt.Errorf("%s", msg),
			); err == errRequestNotFound {
				if err := s.results.publishResult(correlationID, &BroadcastPayload{
					ErrorMsg: msg,
				}); err != nil {
					return fmt.Errorf("publish result: %v", err)
				}
			} else if err != nil {
				return err
			}
			return nil
		}(); err != nil {
			log.Printf("%v: %v", r.RequestURI, err)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
		}
	}
}

func (s *server) buildRoutes() {
	s.handler.HandleFunc("/load", s.handleLoad())
	s.handler.HandleFunc("/run", s.handleRun())
	s.handler.HandleFunc("/problem", s.handleProblem())
	s.handler.HandleFunc("/complete", s.handleComplete())
	s.handler.HandleFunc("/error", s.handleError())
}

func (s *server) listen() error {
	log.Printf("Listening on %s", s.listenAddr)
	return http.ListenAndServe(s.listenAddr, s.handler)
}

// prunePods deletes solver pods left behind by earlier operator instances.
func (s *server) prunePods() error {
	resp, err := s.clientset.CoreV1().Pods(s.namespace).List(
		context.TODO(),
		metav1.ListOptions{
			LabelSelector: fmt.Sprintf("app=%s", s.appLabel),
		},
	)
	if err != nil {
		return fmt.Errorf("list pods: %v", err)
	}
	for _, pod := range resp.Items {
		switch pod.Status.Phase {
		case v1.PodSucceeded, v1.PodFailed:
			if err := s.clientset.CoreV1().Pods(s.namespace).Delete(
				context.TODO(),
				pod.Name,
				&metav1.DeleteOptions{},
			); err != nil {
				return fmt.Errorf("delete pod %s: %v", pod.Name, err)
			}
			log.Printf("Pruned %s pod %s", pod.Status.Phase, pod.Name)
		default:
		}
	}
	return nil
}

func entry() error {
	cfg, err := configFromEnv()
	if err != nil {
		return fmt.Errorf("config: %v", err)
	}
	s, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("constructor: %v", err)
	}
	if err := s.prunePods(); err != nil {
		log.Printf("Warning: failed to prune pods: %v", err)
	}
	return s.listen()
}

func main() {
	if err := entry(); err != nil {
		log.Fatal(err)
	}
}
