// Benchmark tool for testing Harrier against a synthetic labeled fleet.
//
// Usage:
//   go run cmd/benchmark/main.go -vehicles 10000 -url http://localhost:8080
//
// This tool:
//   1. Generates a synthetic fleet with injected fraud patterns
//      (over-tank refuels, fuel far above expected, station concentration)
//   2. Sends the fleet to Harrier in batches for scoring
//   3. Compares Harrier's HIGH-tier verdict with the injected labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledVehicle is one synthetic vehicle with its ground-truth label.
type LabeledVehicle struct {
	Profile      VehicleProfile
	Telemetry    []TelemetryRecord
	Transactions []FuelTransaction
	IsFraud      bool
	Pattern      string // "over_tank", "fuel_over", "station_conc", or "clean"
}

// VehicleProfile matches the Harrier API profile format.
type VehicleProfile struct {
	VehicleID     string   `json:"vehicle_id"`
	VehicleNo     string   `json:"vehicle_no"`
	TonClass      string   `json:"ton_class"`
	FuelType      string   `json:"fuel_type"`
	AvgEffKmPerL  float64  `json:"avg_eff_km_per_l"`
	TankCapacityL *float64 `json:"tank_capacity_l,omitempty"`
}

// TelemetryRecord matches the Harrier API telemetry format.
type TelemetryRecord struct {
	VehicleID       string    `json:"vehicle_id"`
	Date            time.Time `json:"date"`
	TotalDistanceKm float64   `json:"total_distance_km"`
}

// FuelTransaction matches the Harrier API transaction format.
type FuelTransaction struct {
	TransactionID string    `json:"transaction_id"`
	VehicleID     string    `json:"vehicle_id"`
	StationID     string    `json:"station_id"`
	Time          time.Time `json:"time"`
	FuelLiter     float64   `json:"fuel_liter"`
}

// ScoreRequest is the Harrier API request format.
type ScoreRequest struct {
	BatchID        string            `json:"batchId"`
	Profiles       []VehicleProfile  `json:"profiles"`
	Telemetry      []TelemetryRecord `json:"telemetry"`
	Transactions   []FuelTransaction `json:"transactions"`
	ProfileColumns []string          `json:"profileColumns"`
	RiskOnly       bool              `json:"riskOnly"`
}

// ScoreResponse is the Harrier API response format.
type ScoreResponse struct {
	RunID string `json:"runId"`
	Risk  struct {
		Rows []struct {
			VehicleID  string  `json:"vehicle_id"`
			RiskScore  float64 `json:"risk_score"`
			RiskTier   string  `json:"risk_tier"`
			RiskReason string  `json:"risk_reason"`
		} `json:"rows"`
	} `json:"risk"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Fraud scored HIGH
	FalsePositives int64 // Clean scored HIGH
	TrueNegatives  int64 // Clean scored below HIGH
	FalseNegatives int64 // Fraud scored below HIGH (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	vehicles := flag.Int("vehicles", 10000, "Number of synthetic vehicles")
	batchSize := flag.Int("batch", 200, "Vehicles per scoring batch")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudRate := flag.Float64("fraud", 0.05, "Fraction of vehicles with injected fraud (0.0-1.0)")
	seed := flag.Int64("seed", 42, "Random seed for the fleet generator")
	verbose := flag.Bool("verbose", false, "Print each mismatched vehicle")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        HARRIER BENCHMARK - Synthetic Fleet Scoring            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Vehicles:    %d\n", *vehicles)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Fraud Rate:  %.2f\n", *fraudRate)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Generate the labeled fleet
	fmt.Printf("\nGenerating %d synthetic vehicles...\n", *vehicles)
	fleet := generateFleet(*vehicles, *fraudRate, *seed)

	fraudCount := 0
	for _, v := range fleet {
		if v.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("✓ Generated %d vehicles\n", len(fleet))
	fmt.Printf("  - Fraud: %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(fleet)))
	fmt.Printf("  - Clean: %d (%.2f%%)\n", len(fleet)-fraudCount, 100*float64(len(fleet)-fraudCount)/float64(len(fleet)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(fleet, *baseURL, *tenantID, *batchSize, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateFleet builds labeled vehicles. Clean vehicles refuel within a
// few percent of expected across several stations; fraud vehicles get
// one of three injected patterns.
func generateFleet(n int, fraudRate float64, seed int64) []LabeledVehicle {
	rng := rand.New(rand.NewSource(seed))
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fleet := make([]LabeledVehicle, 0, n)
	for i := 0; i < n; i++ {
		vehicleID := fmt.Sprintf("V-%06d", i)
		tonClasses := []string{"1", "3", "5", "8", "12"}
		tonClass := tonClasses[rng.Intn(len(tonClasses))]
		eff := 6.0 + rng.Float64()*6.0    // 6-12 km/L
		dist := 500 + rng.Float64()*2500  // 500-3000 km over the window
		tank := 80 + rng.Float64()*120    // 80-200 L
		expected := dist / eff

		v := LabeledVehicle{
			Profile: VehicleProfile{
				VehicleID:     vehicleID,
				VehicleNo:     fmt.Sprintf("%02d가%04d", rng.Intn(90)+10, rng.Intn(9000)+1000),
				TonClass:      tonClass,
				FuelType:      "diesel",
				AvgEffKmPerL:  eff,
				TankCapacityL: &tank,
			},
			Pattern: "clean",
		}

		// Telemetry spread over ten days
		for d := 0; d < 10; d++ {
			v.Telemetry = append(v.Telemetry, TelemetryRecord{
				VehicleID:       vehicleID,
				Date:            day.AddDate(0, 0, d),
				TotalDistanceKm: dist / 10,
			})
		}

		actual := expected * (0.95 + rng.Float64()*0.10) // within tolerance
		stations := 3 + rng.Intn(3)

		if rng.Float64() < fraudRate {
			v.IsFraud = true
			switch rng.Intn(3) {
			case 0:
				v.Pattern = "over_tank"
			case 1:
				v.Pattern = "fuel_over"
				actual = expected * (1.5 + rng.Float64()*0.5)
			case 2:
				v.Pattern = "station_conc"
				actual = expected * (1.5 + rng.Float64()*0.3)
				stations = 1
			}
		}

		refuels := 5 + rng.Intn(6)
		perRefuel := actual / float64(refuels)
		for r := 0; r < refuels; r++ {
			liters := perRefuel
			if v.Pattern == "over_tank" && r < 2 {
				liters = tank * 1.3 // physically impossible single fill
			}
			v.Transactions = append(v.Transactions, FuelTransaction{
				TransactionID: fmt.Sprintf("%s-T%02d", vehicleID, r),
				VehicleID:     vehicleID,
				StationID:     fmt.Sprintf("S-%03d", rng.Intn(stations)),
				Time:          day.AddDate(0, 0, r).Add(time.Duration(6+rng.Intn(14)) * time.Hour),
				FuelLiter:     liters,
			})
		}

		fleet = append(fleet, v)
	}
	return fleet
}

func runBenchmark(fleet []LabeledVehicle, baseURL, tenantID string, batchSize, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Split into batches
	var batches [][]LabeledVehicle
	for start := 0; start < len(fleet); start += batchSize {
		end := start + batchSize
		if end > len(fleet) {
			end = len(fleet)
		}
		batches = append(batches, fleet[start:end])
	}

	work := make(chan []LabeledVehicle, len(batches))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 60 * time.Second}

			for batch := range work {
				start := time.Now()
				result, err := scoreBatch(client, baseURL, tenantID, batch)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, int64(len(batch)))

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, int64(len(batch)))
					if verbose {
						fmt.Printf("ERROR: batch of %d -> %v\n", len(batch), err)
					}
					continue
				}

				// Index verdicts by vehicle
				tiers := make(map[string]string, len(result.Risk.Rows))
				for _, row := range result.Risk.Rows {
					tiers[row.VehicleID] = row.RiskTier
				}

				for _, v := range batch {
					if v.IsFraud {
						atomic.AddInt64(&metrics.TotalFraud, 1)
					} else {
						atomic.AddInt64(&metrics.TotalClean, 1)
					}

					predicted := tiers[v.Profile.VehicleID] == "HIGH"
					actual := v.IsFraud

					if predicted && actual {
						atomic.AddInt64(&metrics.TruePositives, 1)
					} else if predicted && !actual {
						atomic.AddInt64(&metrics.FalsePositives, 1)
					} else if !predicted && !actual {
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					} else { // !predicted && actual
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}

					if verbose && predicted != actual {
						fmt.Printf("✗ %-10s | Pattern: %-12s | Fraud: %-5v | Tier: %s\n",
							v.Profile.VehicleID, v.Pattern, v.IsFraud, tiers[v.Profile.VehicleID])
					}
				}
			}
		}()
	}

	// Send work
	for _, batch := range batches {
		work <- batch
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func scoreBatch(client *http.Client, baseURL, tenantID string, batch []LabeledVehicle) (*ScoreResponse, error) {
	req := ScoreRequest{
		BatchID:        fmt.Sprintf("bench-%s", batch[0].Profile.VehicleID),
		ProfileColumns: []string{"tank_capacity_l"},
		RiskOnly:       true,
	}
	for _, v := range batch {
		req.Profiles = append(req.Profiles, v.Profile)
		req.Telemetry = append(req.Telemetry, v.Telemetry...)
		req.Transactions = append(req.Transactions, v.Transactions...)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 FLEET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    HIGH      not HIGH")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of HIGH verdicts, how many were injected fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of injected fraud, how many scored HIGH)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct verdicts)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		vps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms/vehicle\n", avgMs)
		fmt.Printf("   Throughput:       %.2f vehicles/sec\n", vps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - HIGH verdicts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
