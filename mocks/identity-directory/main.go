// Command identity-directory is a local stand-in for the social identity
// directory. It serves the bulk-by-address endpoint with deterministic users
// and a few magic wallets that drive the error paths.
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "8082"
	defaultAPIKey    = "identity-directory-secret-key"
	defaultLatencyMs = "50"
)

// Magic wallets, lower-case.
const (
	walletUnknown     = "0x000000000000000000000000000000000000dead"
	walletOutage      = "0x0000000000000000000000000000000000000500"
	walletRateLimited = "0x0000000000000000000000000000000000000429"
	walletFresh       = "0x0000000000000000000000000000000000000001"
	walletEmpty       = "0x0000000000000000000000000000000000000000"
)

type verifiedAddresses struct {
	EthAddresses []string `json:"eth_addresses"`
}

type user struct {
	FID               uint64            `json:"fid"`
	Username          string            `json:"username"`
	CustodyAddress    string            `json:"custody_address"`
	FollowerCount     int               `json:"follower_count"`
	FollowingCount    int               `json:"following_count"`
	PostCount         int               `json:"post_count"`
	RegisteredAt      string            `json:"registered_at"`
	VerifiedAddresses verifiedAddresses `json:"verified_addresses"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	apiKey    = getEnv("API_KEY", defaultAPIKey)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/v2/farcaster/user/bulk-by-address", handleBulkByAddress)

	log.Printf("mock identity directory listening on :%s (latency %dms)", port, latencyMs)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "identity-directory"})
}

func handleBulkByAddress(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	if r.Method != http.MethodGet {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("x-api-key") != apiKey {
		sendError(w, "invalid api key", http.StatusUnauthorized)
		return
	}
	wallet := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("addresses")))
	if len(wallet) != 42 || !strings.HasPrefix(wallet, "0x") {
		sendError(w, "addresses must be one 0x-prefixed address", http.StatusBadRequest)
		return
	}

	switch wallet {
	case walletUnknown:
		sendError(w, "no users found for address", http.StatusNotFound)
		return
	case walletOutage:
		sendError(w, "upstream exploded", http.StatusInternalServerError)
		return
	case walletRateLimited:
		sendError(w, "slow down", http.StatusTooManyRequests)
		return
	case walletEmpty:
		writeJSON(w, http.StatusOK, map[string][]user{})
		return
	}

	u := generateUser(wallet)
	if wallet == walletFresh {
		u.FollowerCount, u.FollowingCount, u.PostCount = 0, 0, 0
		u.RegisteredAt = time.Now().UTC().Format(time.RFC3339)
	}
	log.Printf("lookup %s -> fid %d", wallet, u.FID)
	writeJSON(w, http.StatusOK, map[string][]user{wallet: {u}})
}

// generateUser derives a stable, established account from the wallet.
func generateUser(wallet string) user {
	sum := sha256.Sum256([]byte(wallet))
	n := binary.BigEndian.Uint64(sum[:8])
	ageDays := 60 + int(n%900)
	return user{
		FID:               1 + n%900_000,
		Username:          "user" + strconv.FormatUint(n%100_000, 10),
		CustodyAddress:    wallet,
		FollowerCount:     10 + int(n%500),
		FollowingCount:    10 + int((n>>8)%300),
		PostCount:         20 + int((n>>16)%1000),
		RegisteredAt:      time.Now().UTC().AddDate(0, 0, -ageDays).Format(time.RFC3339),
		VerifiedAddresses: verifiedAddresses{EthAddresses: []string{wallet}},
	}
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, errorResponse{Code: http.StatusText(code), Message: message})
	log.Printf("error response: %d %s", code, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	v, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		log.Printf("invalid integer for %s, using %s", key, defaultValue)
		v, _ = strconv.Atoi(defaultValue)
	}
	return v
}
