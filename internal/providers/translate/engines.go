package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	defaultNaverURL    = "https://openapi.naver.com/v1/papago/n2mt"
	defaultMyMemoryURL = "https://api.mymemory.translated.net"
)

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Naver calls the Papago n2mt endpoint.
type Naver struct {
	ClientID     string
	ClientSecret string
	Endpoint     string
	HTTPClient   *http.Client
}

func (n *Naver) Name() string { return "naver" }

func (n *Naver) Available() bool {
	return n != nil && n.ClientID != "" && n.ClientSecret != ""
}

func (n *Naver) Translate(ctx context.Context, text, source, target string) (string, error) {
	if !n.Available() {
		return "", errors.New("naver: credentials not configured")
	}
	endpoint := n.Endpoint
	if endpoint == "" {
		endpoint = defaultNaverURL
	}
	form := url.Values{"source": {source}, "target": {target}, "text": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("naver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Naver-Client-Id", n.ClientID)
	req.Header.Set("X-Naver-Client-Secret", n.ClientSecret)

	var payload struct {
		Message struct {
			Result struct {
				TranslatedText string `json:"translatedText"`
			} `json:"result"`
		} `json:"message"`
	}
	if err := doJSON(defaultHTTPClient(n.HTTPClient), req, &payload); err != nil {
		return "", fmt.Errorf("naver: %w", err)
	}
	if payload.Message.Result.TranslatedText == "" {
		return "", errors.New("naver: empty translation")
	}
	return payload.Message.Result.TranslatedText, nil
}

// MyMemory calls the public MyMemory get endpoint.
type MyMemory struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (m *MyMemory) Name() string { return "mymemory" }

func (m *MyMemory) Available() bool { return m != nil }

func (m *MyMemory) Translate(ctx context.Context, text, source, target string) (string, error) {
	base := strings.TrimRight(m.BaseURL, "/")
	if base == "" {
		base = defaultMyMemoryURL
	}
	q := url.Values{"q": {text}, "langpair": {source + "|" + target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/get?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("mymemory: build request: %w", err)
	}
	var payload struct {
		ResponseStatus  json.Number `json:"responseStatus"`
		ResponseDetails string      `json:"responseDetails"`
		ResponseData    struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := doJSON(defaultHTTPClient(m.HTTPClient), req, &payload); err != nil {
		return "", fmt.Errorf("mymemory: %w", err)
	}
	if payload.ResponseStatus.String() != "200" || payload.ResponseData.TranslatedText == "" {
		detail := payload.ResponseDetails
		if detail == "" {
			detail = "translation failed"
		}
		return "", fmt.Errorf("mymemory: %s", detail)
	}
	return payload.ResponseData.TranslatedText, nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Glossary is an offline word-level Korean to English fallback.
type Glossary struct{}

func (Glossary) Name() string { return "glossary" }

func (Glossary) Available() bool { return true }

func (Glossary) Translate(_ context.Context, text, source, target string) (string, error) {
	if source != "ko" || target != "en" {
		return "", errors.New("glossary: only ko to en is supported")
	}
	words := strings.Fields(text)
	for i, word := range words {
		if en, ok := glossary[word]; ok {
			words[i] = en
			continue
		}
		for _, ko := range glossaryByLength {
			if strings.Contains(word, ko) {
				words[i] = strings.Replace(word, ko, glossary[ko], 1)
				break
			}
		}
	}
	return strings.Join(words, " "), nil
}

var glossary = map[string]string{
	"고양이": "cat", "강아지": "puppy", "개": "dog", "사과": "apple", "꽃": "flower",
	"나무": "tree", "하늘": "sky", "바다": "sea", "산": "mountain", "강": "river",
	"집": "house", "도시": "city", "숲": "forest", "해변": "beach", "별": "star",
	"달": "moon", "태양": "sun", "구름": "cloud", "비": "rain", "눈": "snow",
	"사람": "person", "남자": "man", "여자": "woman", "아이": "child", "아기": "baby",
	"여우": "fox", "새": "bird", "말": "horse", "용": "dragon", "성": "castle",
	"자동차": "car", "비행기": "airplane", "기차": "train", "자전거": "bicycle",
	"아침": "morning", "저녁": "evening", "밤": "night", "커피": "coffee",
	"빨간": "red", "파란": "blue", "노란": "yellow", "초록": "green", "검은": "black",
	"흰": "white", "분홍": "pink", "보라": "purple", "주황": "orange", "갈색": "brown",
	"큰": "big", "작은": "small", "예쁜": "pretty", "아름다운": "beautiful",
	"귀여운": "cute", "따뜻한": "warm", "차가운": "cold", "오래된": "old", "새로운": "new",
}

// glossaryByLength lists glossary keys longest first so partial matches
// prefer the most specific word.
var glossaryByLength = func() []string {
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}()

func less(a, b string) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	if la != lb {
		return la > lb
	}
	return a < b
}
