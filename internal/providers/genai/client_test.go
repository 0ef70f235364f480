package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestClient(t *testing.T, transport http.RoundTripper, mutate func(*Options)) *Client {
	t.Helper()
	opts := Options{
		APIKey:      "test-key",
		BaseURL:     "https://gen.example/v1beta",
		TextModels:  []string{"model-a", "model-b"},
		ImageModel:  "image-model",
		ImageSizes:  []string{"1024x1024", "896x1280"},
		TTSModel:    "tts-model",
		TTSVoice:    "Kore",
		Attempts:    2,
		BackoffBase: time.Millisecond,
		HTTPClient:  &http.Client{Transport: transport},
	}
	if mutate != nil {
		mutate(&opts)
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateJSONAdvancesModelOnNotFound(t *testing.T) {
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/model-a:generateContent", http.StatusNotFound, map[string]any{
		"error": map[string]any{"code": 404, "status": "NOT_FOUND", "message": "model not found"},
	})
	transport.pushJSON("/v1beta/models/model-b:generateContent", http.StatusOK, textResponse(`{"tone":"bright"}`))

	client := newTestClient(t, transport, nil)
	raw, err := client.GenerateJSON(context.Background(), "plan something", "")
	if err != nil {
		t.Fatalf("generate json: %v", err)
	}
	if !strings.Contains(string(raw), "bright") {
		t.Fatalf("unexpected payload: %s", raw)
	}
	paths := transport.requestPaths()
	if len(paths) != 2 {
		t.Fatalf("calls = %d, want 2 (one per model)", len(paths))
	}
	if !strings.Contains(paths[0], "model-a") || !strings.Contains(paths[1], "model-b") {
		t.Fatalf("unexpected call order: %v", paths)
	}
}

func TestGenerateJSONRetriesServerErrorWithoutAdvancing(t *testing.T) {
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/model-a:generateContent", http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"code": 500, "message": "boom"},
	})
	transport.pushJSON("/v1beta/models/model-a:generateContent", http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"code": 500, "message": "boom again"},
	})

	client := newTestClient(t, transport, nil)
	_, err := client.GenerateJSON(context.Background(), "plan something", "")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "boom again") {
		t.Fatalf("last observed error should surface, got: %v", err)
	}
	for _, path := range transport.requestPaths() {
		if strings.Contains(path, "model-b") {
			t.Fatalf("server errors must not advance the model list: %v", transport.requestPaths())
		}
	}
	if got := len(transport.requestPaths()); got != 2 {
		t.Fatalf("calls = %d, want 2 retry attempts on model-a", got)
	}
}

func TestGenerateJSONRecoversAfterRateLimit(t *testing.T) {
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/model-a:generateContent", http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "slow down"},
	})
	transport.pushJSON("/v1beta/models/model-a:generateContent", http.StatusOK, textResponse(`{"ok":true}`))

	client := newTestClient(t, transport, nil)
	raw, err := client.GenerateJSON(context.Background(), "plan", "")
	if err != nil {
		t.Fatalf("generate json: %v", err)
	}
	if !strings.Contains(string(raw), "ok") {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestGenerateImageAdvancesSizeOnInvalidArgument(t *testing.T) {
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/image-model:generateContent", http.StatusBadRequest, map[string]any{
		"error": map[string]any{"code": 400, "status": "INVALID_ARGUMENT", "message": "unsupported image_size"},
	})
	transport.pushJSON("/v1beta/models/image-model:generateContent", http.StatusOK, inlineImageResponse([]byte{0x89, 'P', 'N', 'G'}))

	client := newTestClient(t, transport, nil)
	blob, err := client.GenerateImage(context.Background(), "a quiet lake", "1024x1024")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if len(blob.Data) == 0 {
		t.Fatal("expected image bytes")
	}

	bodies := transport.requestBodies()
	if len(bodies) != 2 {
		t.Fatalf("calls = %d, want 2", len(bodies))
	}
	var second map[string]any
	if err := json.Unmarshal(bodies[1], &second); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	toolCfg := second["tool_config"].(map[string]any)["image_generation_config"].(map[string]any)
	if size := toolCfg["image_size"]; size != "896x1280" {
		t.Fatalf("second attempt image_size = %v, want next candidate 896x1280", size)
	}
}

func TestGenerateImageStopsOnPermanentError(t *testing.T) {
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/image-model:generateContent", http.StatusUnauthorized, map[string]any{
		"error": map[string]any{"code": 401, "status": "UNAUTHENTICATED", "message": "bad key"},
	})

	client := newTestClient(t, transport, nil)
	_, err := client.GenerateImage(context.Background(), "a quiet lake", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(transport.requestPaths()); got != 1 {
		t.Fatalf("calls = %d, want 1 (no retry, no size advance on auth errors)", got)
	}
}

func TestGenerateImageFetchesFileURI(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d}
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/image-model:generateContent", http.StatusOK, map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"parts": []any{map[string]any{
					"fileData": map[string]any{"mimeType": "image/png", "fileUri": "https://files.example/generated/1.png"},
				}},
			},
		}},
	})
	transport.pushBinary("https://files.example/generated/1.png", payload)

	client := newTestClient(t, transport, nil)
	blob, err := client.GenerateImage(context.Background(), "a quiet lake", "1024x1024")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if !bytes.Equal(blob.Data, payload) {
		t.Fatalf("fetched bytes mismatch: %v", blob.Data)
	}
	if blob.MIME != "image/png" {
		t.Fatalf("mime = %q, want image/png", blob.MIME)
	}
}

func TestGenerateSpeechDecodesInlineAudio(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46}
	transport := newScriptTransport()
	transport.pushJSON("/v1beta/models/tts-model:generateContent", http.StatusOK, map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"parts": []any{map[string]any{
					"inlineData": map[string]any{"mimeType": "audio/wav", "data": base64.StdEncoding.EncodeToString(audio)},
				}},
			},
		}},
	})

	client := newTestClient(t, transport, nil)
	blob, err := client.GenerateSpeech(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("generate speech: %v", err)
	}
	if !bytes.Equal(blob.Data, audio) {
		t.Fatalf("audio bytes mismatch: %v", blob.Data)
	}
	if blob.MIME != "audio/wav" {
		t.Fatalf("mime = %q, want audio/wav", blob.MIME)
	}
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"parts": []any{map[string]any{"text": text}},
			},
		}},
	}
}

func inlineImageResponse(data []byte) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"parts": []any{map[string]any{
					"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(data)},
				}},
			},
		}},
	}
}

// scriptTransport serves queued responses per path and records every
// request, so tests can assert attempt counts and payload evolution.
type scriptTransport struct {
	mu     sync.Mutex
	queues map[string][]responseStub
	paths  []string
	bodies [][]byte
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func newScriptTransport() *scriptTransport {
	return &scriptTransport{queues: map[string][]responseStub{}}
}

func (s *scriptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.URL.Path
	if req.Method == http.MethodGet {
		key = req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	}
	s.paths = append(s.paths, key)
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		s.bodies = append(s.bodies, body)
	} else {
		s.bodies = append(s.bodies, nil)
	}

	queue := s.queues[key]
	if len(queue) == 0 {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("no stub for " + key)),
		}, nil
	}
	stub := queue[0]
	s.queues[key] = queue[1:]
	return stub.toResponse(), nil
}

func (s *scriptTransport) pushJSON(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[path] = append(s.queues[path], responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	})
}

func (s *scriptTransport) pushBinary(url string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[url] = append(s.queues[url], responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}},
		body:   data,
	})
}

func (s *scriptTransport) requestPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

func (s *scriptTransport) requestBodies() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.bodies))
	copy(out, s.bodies)
	return out
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
