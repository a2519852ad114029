package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BackendURL = "http://localhost:8080"
	WSURL      = "ws://localhost:8080/ws"
	TestEmail  = "test@example.com"
	TestPass   = "Test123456"
)

// Проверка состояния
func testHealth() error {
	fmt.Println("\n[TEST] Testing /api/health...")
	resp, err := http.Get(BackendURL + "/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("✓ Health check: %s\n", string(body))
	return nil
}

// Проверка регистрации
func testRegister() error {
	fmt.Println("\n[TEST] Testing /api/auth/register...")

	data := map[string]string{
		"email":    TestEmail,
		"username": "testuser",
		"password": TestPass,
	}

	jsonData, _ := json.Marshal(data)
	resp, err := http.Post(BackendURL+"/api/auth/register", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("registration failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusCreated {
		fmt.Printf("✓ Registration successful: %s\n", string(body))
		return nil
	} else if resp.StatusCode == http.StatusConflict {
		fmt.Printf("⚠ User already exists (this is OK)\n")
		return nil
	}

	return fmt.Errorf("registration failed: status %d, body: %s", resp.StatusCode, string(body))
}

// Проверка логина
func testLogin() (*http.Client, []*http.Cookie, error) {
	fmt.Println("\n[TEST] Testing /api/auth/login...")

	data := map[string]string{
		"email":    TestEmail,
		"password": TestPass,
	}

	jsonData, _ := json.Marshal(data)
	client := &http.Client{}
	req, _ := http.NewRequest("POST", BackendURL+"/api/auth/login", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("login failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("login failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, nil, fmt.Errorf("no session cookie received")
	}

	fmt.Printf("✓ Login successful, session cookie received\n")
	return client, cookies, nil
}

// Проверка детекции по загрузке
func testDetection(client *http.Client, cookies []*http.Cookie, frameData []byte) error {
	fmt.Println("\n[TEST] Testing /api/detect...")
	frameBase64 := base64.StdEncoding.EncodeToString(frameData)

	data := map[string]interface{}{
		"type":      "frame",
		"frame":     frameBase64,
		"frame_id":  "testclient-1",
		"timestamp": time.Now().UnixMilli(),
	}

	jsonData, _ := json.Marshal(data)
	req, _ := http.NewRequest("POST", BackendURL+"/api/detect", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("detection request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detection failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}

	fmt.Printf("✓ Detection successful!\n")
	fmt.Printf("  - Accident: %v\n", result["accident_detected"])
	fmt.Printf("  - Confidence: %v\n", result["confidence"])
	fmt.Printf("  - Class: %v\n", result["predicted_class"])
	fmt.Printf("  - Processing Time: %v ms\n", result["processing_time_ms"])

	return nil
}

// Просмотр последних обнаружений
func testRecentAlerts(client *http.Client, cookies []*http.Cookie) error {
	fmt.Println("\n[TEST] Testing /api/alerts/recent...")

	req, _ := http.NewRequest("GET", BackendURL+"/api/alerts/recent?limit=10", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get alerts failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get alerts failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var alerts []interface{}
	if err := json.Unmarshal(body, &alerts); err != nil {
		return fmt.Errorf("failed to parse alerts: %v", err)
	}

	fmt.Printf("✓ Retrieved %d recent detections\n", len(alerts))
	return nil
}

// Проверка потокового режима по WebSocket
func testWebSocketStream(frameData []byte) error {
	fmt.Println("\n[TEST] Testing WebSocket streaming...")

	conn, _, err := websocket.DefaultDialer.Dial(WSURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Приветственный heartbeat
	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("failed to read greeting: %v", err)
	}
	fmt.Printf("✓ Connected: %v\n", hello["type"])

	// Ping
	conn.WriteJSON(map[string]interface{}{"type": "ping"})
	var pong map[string]interface{}
	if err := conn.ReadJSON(&pong); err != nil {
		return fmt.Errorf("failed to read pong: %v", err)
	}
	fmt.Printf("✓ Pong received, active connections: %v\n", pong["active_connections"])

	// Кадр
	conn.WriteJSON(map[string]interface{}{
		"type":      "frame",
		"frame":     base64.StdEncoding.EncodeToString(frameData),
		"frame_id":  "ws-frame-1",
		"timestamp": time.Now().UnixMilli(),
	})

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var result map[string]interface{}
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("failed to read detection result: %v", err)
	}

	fmt.Printf("✓ Stream detection: type=%v class=%v confidence=%v\n",
		result["type"], result["predicted_class"], result["confidence"])
	return nil
}

// Генерация тестового изображения
func generateTestImage() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for x := 0; x < 320; x++ {
		for y := 0; y < 240; y++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func main() {
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println("ACCIDENT DETECTOR - Backend Testing Client")
	fmt.Println("=" + strings.Repeat("=", 60))

	fmt.Println("\n[INFO] Make sure the Go backend is running on", BackendURL)
	fmt.Println("[INFO] Make sure the model service is running on localhost:9000")
	fmt.Println("\nPress Enter to start tests...")
	fmt.Scanln()

	fmt.Println("\n[INFO] Generating test image...")
	frameData, err := generateTestImage()
	if err != nil {
		log.Fatalf("Failed to generate test image: %v", err)
	}
	fmt.Printf("✓ Generated test image: %d bytes\n", len(frameData))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Health Check", testHealth},
		{"Registration", testRegister},
	}

	for _, test := range tests {
		if err := test.fn(); err != nil {
			log.Printf("❌ %s failed: %v", test.name, err)
			os.Exit(1)
		}
	}

	client, cookies, err := testLogin()
	if err != nil {
		log.Printf("❌ Login failed: %v", err)
		os.Exit(1)
	}

	if err := testDetection(client, cookies, frameData); err != nil {
		log.Printf("❌ Detection test failed: %v", err)
		log.Printf("   Make sure the model service is running!")
		os.Exit(1)
	}

	if err := testRecentAlerts(client, cookies); err != nil {
		log.Printf("⚠ Recent alerts check failed: %v", err)
	}

	if err := testWebSocketStream(frameData); err != nil {
		log.Printf("❌ WebSocket test failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("✅ All tests completed successfully!")
	fmt.Println("=" + strings.Repeat("=", 60))
}
