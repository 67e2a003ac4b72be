//go:build integration

package integration_test

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// Environment variable names for integration test configuration.
const (
	EnvServerURL  = "INTEGRATION_SERVER_URL"
	EnvCACertPath = "INTEGRATION_CA_CERT_PATH"
	EnvClientCert = "INTEGRATION_CLIENT_CERT_PATH"
	EnvClientKey  = "INTEGRATION_CLIENT_KEY_PATH"
	EnvBasicUser  = "INTEGRATION_BASIC_USER"
	EnvBasicPass  = "INTEGRATION_BASIC_PASS"
)

// Default configuration values.
const (
	DefaultServerURL = "https://localhost:8443"
	DefaultTimeout   = 10 * time.Second
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// serverURL returns the base URL of the server under test.
func serverURL() string {
	return getEnvOrDefault(EnvServerURL, DefaultServerURL)
}

// requireEnv skips the test unless all the given variables are set.
func requireEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		if os.Getenv(key) == "" {
			t.Skipf("%s not set, skipping", key)
		}
	}
}

// skipIfServiceUnavailable checks whether the service at the given
// URL is reachable with client and skips the test if it is not.
func skipIfServiceUnavailable(t *testing.T, client *http.Client, url string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Skipf("Service unavailable at %s: %v", url, err)
	}
	resp.Body.Close()
}

// createTLSClient builds an *http.Client that trusts the CA at caCert
// and presents the client key pair when both paths are set. Redirects
// are returned to the caller instead of followed.
func createTLSClient(caCert, clientCert, clientKey string) (*http.Client, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if caCert != "" {
		caCertPEM, err := os.ReadFile(caCert)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCertPEM) {
			return nil, fmt.Errorf("failed to append CA cert to pool")
		}
		tlsCfg.RootCAs = caPool
	}

	if clientCert != "" && clientKey != "" {
		cert, err := tls.LoadX509KeyPair(clientCert, clientKey)
		if err != nil {
			return nil, fmt.Errorf("loading client key pair: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// anonymousClient returns a client that presents no certificate.
func anonymousClient(t *testing.T) *http.Client {
	t.Helper()

	client, err := createTLSClient(os.Getenv(EnvCACertPath), "", "")
	if err != nil {
		t.Fatalf("Cannot create TLS client: %v", err)
	}
	skipIfServiceUnavailable(t, client, serverURL()+"/health")
	return client
}

// certificateClient returns a client presenting the configured client
// certificate, skipping the test when none is configured.
func certificateClient(t *testing.T) *http.Client {
	t.Helper()

	requireEnv(t, EnvClientCert, EnvClientKey)

	client, err := createTLSClient(
		os.Getenv(EnvCACertPath),
		os.Getenv(EnvClientCert),
		os.Getenv(EnvClientKey),
	)
	if err != nil {
		t.Skipf("Cannot create TLS client: %v", err)
	}
	skipIfServiceUnavailable(t, client, serverURL()+"/health")
	return client
}

// apiResponse is a generic API response envelope used for parsing
// integration test responses.
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// errorResponse represents an error response from the API.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// accountResponse represents the account returned by login and /me.
type accountResponse struct {
	ID                string    `json:"id"`
	Login             string    `json:"login"`
	CreatedAt         time.Time `json:"created_at"`
	AuthMethod        string    `json:"auth_method"`
	Provisioned       bool      `json:"provisioned"`
	CommonName        string    `json:"common_name"`
	DistinguishedName string    `json:"distinguished_name"`
}

// loginLinkResponse represents the login link endpoint response.
type loginLinkResponse struct {
	URI           string `json:"uri"`
	Label         string `json:"label"`
	PasswordLogin bool   `json:"password_login"`
}

// healthResponse represents the health endpoint response.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// readyResponse represents the ready endpoint response.
type readyResponse struct {
	Status string `json:"status"`
}

// doRequest is a convenience wrapper that performs an HTTP request and
// returns the response headers, status code and body bytes.
func doRequest(
	t *testing.T,
	client *http.Client,
	req *http.Request,
) (int, http.Header, []byte) {
	t.Helper()

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	return resp.StatusCode, resp.Header, respBody
}

// get performs a GET request for path on the server under test.
func get(t *testing.T, client *http.Client, path string) (int, http.Header, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, serverURL()+path, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	return doRequest(t, client, req)
}

// decodeData unmarshals the data field of a success envelope into v.
func decodeData(t *testing.T, body []byte, v any) {
	t.Helper()

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("Failed to decode response: %v. Body: %s", err, body)
	}
	if !envelope.Success {
		t.Fatalf("Expected success response. Body: %s", body)
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}
