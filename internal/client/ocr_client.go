package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"docverify-service/internal/config"
	"docverify-service/internal/util"
)

// OCRClient talks to the external OCR extraction backend. The backend owns
// all image handling; this side only uploads a file and maps the structured
// response.
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
	enhance    bool
}

// OCRResponse is the backend's response envelope.
type OCRResponse struct {
	Status         string        `json:"status"`
	ErrorType      string        `json:"error_type,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	ProcessingTime float64       `json:"processing_time_seconds,omitempty"`
	ModelUsed      string        `json:"model_used,omitempty"`
	ExtractedData  ExtractedData `json:"extracted_data"`
}

// ExtractedData mirrors the backend's field naming for an Indian government
// ID; absent fields come back as JSON null and decode to empty strings.
type ExtractedData struct {
	DocumentType  string `json:"document_type"`
	Name          string `json:"name"`
	FatherName    string `json:"father_name"`
	DOB           string `json:"dob"`
	Gender        string `json:"gender"`
	AadhaarNumber string `json:"aadhar_number"`
	PANNumber     string `json:"pan_number"`
	DLNumber      string `json:"dl_number"`
	Address       string `json:"address"`
	BloodGroup    string `json:"blood_group"`
	IssueDate     string `json:"issue_date"`
	Validity      string `json:"validity"`
	PinCode       string `json:"pin_code"`
	State         string `json:"state"`
}

func NewOCRClient(cfg *config.Config, logger *zap.Logger) *OCRClient {
	return &OCRClient{
		httpClient: &http.Client{Timeout: cfg.OCR.Timeout},
		baseURL:    cfg.OCR.BaseURL,
		enhance:    cfg.OCR.Enhance,
	}
}

// HealthCheck probes the backend's /health endpoint.
func (c *OCRClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build ocr health request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr backend unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("ocr backend unhealthy: status %d", res.StatusCode)
	}
	return nil
}

// Extract uploads an image and returns the extracted document fields.
// Backend-reported failures surface with their error_type so the handler can
// relay a categorized message.
func (c *OCRClient) Extract(ctx context.Context, filename string, file io.Reader) (*ExtractedData, error) {
	body, contentType, err := c.buildMultipart(filename, file)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract-upload", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build ocr extract request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr extraction call failed: %w", err)
	}
	defer res.Body.Close()

	var parsed OCRResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode ocr response: %w", err)
	}

	if parsed.Status != "success" {
		errType := parsed.ErrorType
		if errType == "" {
			errType = "extraction_error"
		}
		return nil, fmt.Errorf("ocr extraction failed (%s): %s", errType, parsed.ErrorMessage)
	}

	util.Debug("OCR extraction completed",
		zap.String("document_type", parsed.ExtractedData.DocumentType),
		zap.Float64("processing_time_seconds", parsed.ProcessingTime),
		zap.String("model", parsed.ModelUsed),
	)

	return &parsed.ExtractedData, nil
}

func (c *OCRClient) buildMultipart(filename string, file io.Reader) (io.Reader, string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("enhance", strconv.FormatBool(c.enhance)); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	return pr, writer.FormDataContentType(), nil
}
