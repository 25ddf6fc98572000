// services/verification.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// CollectionJudgment is the oracle's verdict on a collection evidence photo.
type CollectionJudgment struct {
	WasteTypeMatch bool    `json:"wasteTypeMatch"`
	AreaClean      bool    `json:"areaClean"`
	Confidence     float64 `json:"confidence"` // in [0,1]
}

// Accepted applies the gate's acceptance rule: the area must be clean and
// confidence strictly above 0.5 (0.5 itself is rejected).
func (j *CollectionJudgment) Accepted() bool {
	return j != nil && j.AreaClean && j.Confidence > 0.5
}

// Oracle is the external verification service seen through the gate. It is
// constructed in main and injected; nothing in this package reaches for a
// package-level client.
type Oracle interface {
	VerifyCollection(ctx context.Context, wasteType, amount, imageURL string) (*CollectionJudgment, error)
}

// OracleClient calls the image-verification service over HTTP.
type OracleClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewOracleClient(baseURL, token string) *OracleClient {
	return &OracleClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// VerifyCollection asks the oracle whether the evidence photo shows the
// reported waste collected. Callers bound the call with ctx; any transport
// error or non-200 is returned as an error and must be mapped to rejection,
// never success.
func (c *OracleClient) VerifyCollection(ctx context.Context, wasteType, amount, imageURL string) (*CollectionJudgment, error) {
	url := fmt.Sprintf("%s/v1/verify-collection", c.BaseURL)

	reqBody := map[string]interface{}{
		"waste_type": wasteType,
		"amount":     amount,
		"image_url":  imageURL,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		log.Printf("Oracle /verify-collection returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("oracle verification failed: %d", resp.StatusCode)
	}

	var out CollectionJudgment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
