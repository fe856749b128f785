// Mock facilitator for local development. Confirms any settle request whose
// payment payload carries a 0x-prefixed signature.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type settleRequest struct {
	PaymentPayload struct {
		Payload struct {
			Signature string `json:"signature"`
		} `json:"payload"`
	} `json:"paymentPayload"`
	Resource       string `json:"resource"`
	ExpectedAmount string `json:"expectedAmount"`
}

func main() {
	http.HandleFunc("/settle", func(w http.ResponseWriter, r *http.Request) {
		var req settleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		valid := strings.HasPrefix(req.PaymentPayload.Payload.Signature, "0x")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":        valid,
			"settlementId": uuid.NewString(),
		})

		log.Printf("settle %s amount=%s valid=%v", req.Resource, req.ExpectedAmount, valid)
	})

	log.Println("Mock facilitator listening on :9090")
	log.Fatal(http.ListenAndServe(":9090", nil))
}
