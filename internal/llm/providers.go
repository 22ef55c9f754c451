package llm

import (
	"encoding/json"
	"fmt"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/httpcore"
)

// openRouterRequest/Response follow the OpenAI-compatible chat completion
// shape OpenRouter exposes.
type openRouterRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenRouter builds the first cascade provider (spec §4.4 order).
func NewOpenRouter(baseURL, apiKey, model string, http *httpcore.Client) Provider {
	return &httpProvider{
		name: "openrouter", baseURL: baseURL, apiKey: apiKey, http: http,
		buildRequest: func(prompt string) ([]byte, error) {
			return json.Marshal(openRouterRequest{Model: model, Messages: []map[string]string{{"role": "user", "content": prompt}}})
		},
		extractText: func(body []byte) (string, error) {
			var r openRouterResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return "", apperr.Wrap(err, apperr.SchemaMismatch, "decoding openrouter response")
			}
			if len(r.Choices) == 0 {
				return "", apperr.New(apperr.ProviderError, "openrouter returned no choices")
			}
			return r.Choices[0].Message.Content, nil
		},
	}
}

type huggingFaceRequest struct {
	Inputs string `json:"inputs"`
}

type huggingFaceResponseItem struct {
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFace builds the second cascade provider.
func NewHuggingFace(baseURL, apiKey string, http *httpcore.Client) Provider {
	return &httpProvider{
		name: "huggingface", baseURL: baseURL, apiKey: apiKey, http: http,
		buildRequest: func(prompt string) ([]byte, error) {
			return json.Marshal(huggingFaceRequest{Inputs: prompt})
		},
		extractText: func(body []byte) (string, error) {
			var r []huggingFaceResponseItem
			if err := json.Unmarshal(body, &r); err != nil {
				return "", apperr.Wrap(err, apperr.SchemaMismatch, "decoding huggingface response")
			}
			if len(r) == 0 {
				return "", apperr.New(apperr.ProviderError, "huggingface returned no generations")
			}
			return r[0].GeneratedText, nil
		},
	}
}

type gigaChatRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
}

type gigaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewGigaChat builds the third cascade provider (Sber GigaChat).
func NewGigaChat(baseURL, apiKey string, http *httpcore.Client) Provider {
	return &httpProvider{
		name: "gigachat", baseURL: baseURL, apiKey: apiKey, http: http,
		buildRequest: func(prompt string) ([]byte, error) {
			return json.Marshal(gigaChatRequest{Model: "GigaChat", Messages: []map[string]string{{"role": "user", "content": prompt}}})
		},
		extractText: func(body []byte) (string, error) {
			var r gigaChatResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return "", apperr.Wrap(err, apperr.SchemaMismatch, "decoding gigachat response")
			}
			if len(r.Choices) == 0 {
				return "", apperr.New(apperr.ProviderError, "gigachat returned no choices")
			}
			return r.Choices[0].Message.Content, nil
		},
	}
}

type yandexGPTRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Temperature float64 `json:"temperature"`
		MaxTokens   string  `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []map[string]string `json:"messages"`
}

type yandexGPTResponse struct {
	Result struct {
		Alternatives []struct {
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// NewYandexGPT builds the fourth and last cascade provider.
func NewYandexGPT(baseURL, apiKey, folderID string, http *httpcore.Client) Provider {
	return &httpProvider{
		name: "yandexgpt", baseURL: baseURL, apiKey: apiKey, http: http,
		buildRequest: func(prompt string) ([]byte, error) {
			req := yandexGPTRequest{ModelURI: fmt.Sprintf("gpt://%s/yandexgpt", folderID)}
			req.CompletionOptions.Temperature = 0.3
			req.CompletionOptions.MaxTokens = "2000"
			req.Messages = []map[string]string{{"role": "user", "text": prompt}}
			return json.Marshal(req)
		},
		extractText: func(body []byte) (string, error) {
			var r yandexGPTResponse
			if err := json.Unmarshal(body, &r); err != nil {
				return "", apperr.Wrap(err, apperr.SchemaMismatch, "decoding yandexgpt response")
			}
			if len(r.Result.Alternatives) == 0 {
				return "", apperr.New(apperr.ProviderError, "yandexgpt returned no alternatives")
			}
			return r.Result.Alternatives[0].Message.Text, nil
		},
	}
}
