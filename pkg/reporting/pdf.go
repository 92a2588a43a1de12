package reporting

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/perfwatch/perfwatch/internal/stats"
)

// Color scheme - professional dark blue theme
var (
	colorPrimary     = [3]int{17, 45, 78}    // Dark navy
	colorSecondary   = [3]int{52, 120, 212}  // Bright blue
	colorAccent      = [3]int{39, 174, 96}   // Green
	colorWarning     = [3]int{243, 156, 18}  // Amber
	colorDanger      = [3]int{231, 76, 60}   // Red
	colorTextDark    = [3]int{44, 62, 80}    // Dark text
	colorTextMuted   = [3]int{127, 140, 141} // Muted text
	colorBackground  = [3]int{248, 249, 250} // Light gray bg
	colorTableHeader = [3]int{17, 45, 78}    // Navy header
	colorTableAlt    = [3]int{241, 245, 249} // Alternating row
	colorGridLine    = [3]int{220, 220, 220} // Chart grid
)

// PDFGenerator handles PDF report generation.
type PDFGenerator struct{}

// NewPDFGenerator creates a new PDF generator.
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Generate creates a PDF report from the provided data.
func (g *PDFGenerator) Generate(report *perftest.PerformanceReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)

	// Cover page
	g.writeCoverPage(pdf, report)

	// Executive summary page
	pdf.AddPage()
	g.addPageHeader(pdf, report, "Executive Summary")
	g.writeExecutiveSummary(pdf, report)
	g.writeActionItemsSection(pdf, report)

	// Trend analysis page
	pdf.AddPage()
	g.addPageHeader(pdf, report, "Trend Analysis")
	g.writeTrendSection(pdf, report)
	g.writeForecastsSection(pdf, report)

	// Response time charts
	g.writeChartsSection(pdf, report)

	// Test results table
	g.writeResultsSection(pdf, report)

	// Anomalies, alerts, and baselines
	g.writeAnomaliesSection(pdf, report)
	g.writeAlertsSection(pdf, report)
	g.writeBaselinesSection(pdf, report)

	// Add page numbers to all pages except cover
	g.addPageNumbers(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}

	return buf.Bytes(), nil
}

// writeCoverPage creates a professional cover page.
func (g *PDFGenerator) writeCoverPage(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	pdf.AddPage()

	pageWidth, pageHeight := pdf.GetPageSize()

	// Top accent bar
	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, pageWidth, 8, "F")

	// Branding area
	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 32)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 15, "PERFWATCH", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 8, "Performance Regression Monitoring", "", 1, "C", false, 0, "")

	// Main title
	pdf.SetY(100)
	pdf.SetFont("Arial", "B", 28)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 12, "Performance Analysis Report", "", 1, "C", false, 0, "")

	// Report info box
	pdf.SetY(130)
	boxX := 40.0
	boxWidth := pageWidth - 80
	boxHeight := 50.0

	pdf.SetFillColor(colorBackground[0], colorBackground[1], colorBackground[2])
	pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
	pdf.RoundedRect(boxX, pdf.GetY(), boxWidth, boxHeight, 3, "1234", "FD")

	pdf.SetY(pdf.GetY() + 10)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, "REPORT", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, report.ID, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	runWord := "test runs"
	if report.Summary.TotalTests == 1 {
		runWord = "test run"
	}
	pdf.CellFormat(0, 7, fmt.Sprintf("%d %s analyzed", report.Summary.TotalTests, runWord), "", 1, "C", false, 0, "")

	// Time period
	start, end := reportPeriod(report)
	pdf.SetY(200)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, "REPORTING PERIOD", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	periodStr := fmt.Sprintf("%s  -  %s",
		start.Format("January 2, 2006 15:04"),
		end.Format("January 2, 2006 15:04"))
	pdf.CellFormat(0, 8, periodStr, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 6, fmt.Sprintf("(%s)", formatDuration(end.Sub(start))), "", 1, "C", false, 0, "")

	// Bottom section
	pdf.SetY(pageHeight - 50)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("January 2, 2006 at 15:04 MST")), "", 1, "C", false, 0, "")

	// Bottom accent bar
	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, pageHeight-8, pageWidth, 8, "F")
}

// writeExecutiveSummary writes the executive summary with health status
func (g *PDFGenerator) writeExecutiveSummary(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	pageWidth, _ := pdf.GetPageSize()
	summary := report.Summary

	// Determine overall health status
	healthStatus := "HEALTHY"
	healthColor := colorAccent
	healthMessage := "All test runs within their baselines"

	criticalItems := 0
	for _, item := range report.ActionItems {
		if item.Priority == "critical" {
			criticalItems++
		}
	}

	if summary.Regressions > 0 || criticalItems > 0 {
		healthStatus = "CRITICAL"
		healthColor = colorDanger
		if summary.Regressions == 1 {
			healthMessage = "1 regression requires immediate attention"
		} else if summary.Regressions > 1 {
			healthMessage = fmt.Sprintf("%d regressions require immediate attention", summary.Regressions)
		} else {
			healthMessage = "Critical action items are pending"
		}
	} else if summary.Failed > 0 || summary.Anomalies > 0 || report.TrendAnalysis.Performance.Overall == stats.TrendDegrading {
		healthStatus = "WARNING"
		healthColor = colorWarning
		if summary.Anomalies == 1 {
			healthMessage = "1 anomaly detected - review recommended"
		} else if summary.Anomalies > 1 {
			healthMessage = fmt.Sprintf("%d anomalies detected - review recommended", summary.Anomalies)
		} else if summary.Failed > 0 {
			healthMessage = fmt.Sprintf("%d failed runs - review recommended", summary.Failed)
		} else {
			healthMessage = "Performance trend is degrading - review recommended"
		}
	}

	// Health status card
	cardX := 20.0
	cardWidth := pageWidth - 40
	cardHeight := 35.0

	pdf.SetFillColor(healthColor[0], healthColor[1], healthColor[2])
	pdf.RoundedRect(cardX, pdf.GetY(), cardWidth, cardHeight, 3, "1234", "F")

	pdf.SetXY(cardX, pdf.GetY()+8)
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(cardWidth, 12, healthStatus, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(cardWidth, 8, healthMessage, "", 1, "C", false, 0, "")

	pdf.SetY(pdf.GetY() + 15)

	// Quick Stats - simple table format (avoids fpdf positioning bugs)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Quick Stats", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	colWidth := 42.5
	pdf.SetFillColor(colorBackground[0], colorBackground[1], colorBackground[2])
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(colWidth, 7, "Runs", "0", 0, "C", true, 0, "")
	pdf.CellFormat(colWidth, 7, "Passed", "0", 0, "C", true, 0, "")
	pdf.CellFormat(colWidth, 7, "Regressions", "0", 0, "C", true, 0, "")
	pdf.CellFormat(colWidth, 7, "Anomalies", "0", 1, "C", true, 0, "")

	passedColor := colorAccent
	if summary.Failed > 0 {
		passedColor = colorWarning
	}
	anomalyColor := colorAccent
	if summary.Anomalies > 0 {
		anomalyColor = colorWarning
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(colorSecondary[0], colorSecondary[1], colorSecondary[2])
	pdf.CellFormat(colWidth, 9, fmt.Sprintf("%d", summary.TotalTests), "0", 0, "C", false, 0, "")
	pdf.SetTextColor(passedColor[0], passedColor[1], passedColor[2])
	pdf.CellFormat(colWidth, 9, fmt.Sprintf("%d", summary.Passed), "0", 0, "C", false, 0, "")
	pdf.SetTextColor(getCountColor(summary.Regressions)[0], getCountColor(summary.Regressions)[1], getCountColor(summary.Regressions)[2])
	pdf.CellFormat(colWidth, 9, fmt.Sprintf("%d", summary.Regressions), "0", 0, "C", false, 0, "")
	pdf.SetTextColor(anomalyColor[0], anomalyColor[1], anomalyColor[2])
	pdf.CellFormat(colWidth, 9, fmt.Sprintf("%d", summary.Anomalies), "0", 1, "C", false, 0, "")

	passRate := 0.0
	if summary.TotalTests > 0 {
		passRate = float64(summary.Passed) / float64(summary.TotalTests) * 100
	}

	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(colWidth, 5, "in period", "0", 0, "C", false, 0, "")
	pdf.CellFormat(colWidth, 5, fmt.Sprintf("%.0f%% pass rate", passRate), "0", 0, "C", false, 0, "")
	pdf.CellFormat(colWidth, 5, "vs baseline", "0", 0, "C", false, 0, "")
	pdf.CellFormat(colWidth, 5, "z-score flagged", "0", 1, "C", false, 0, "")

	pdf.Ln(5)

	// Key Observations section
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Key Observations", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	observations := g.generateObservations(report)
	pdf.SetFont("Arial", "", 10)
	for _, obs := range observations {
		bulletX := pdf.GetX() + 3
		bulletY := pdf.GetY() + 3
		pdf.SetFillColor(obs.color[0], obs.color[1], obs.color[2])
		pdf.Circle(bulletX, bulletY, 2, "F")
		pdf.SetX(pdf.GetX() + 8)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 6, obs.text, "", 1, "L", false, 0, "")
		pdf.Ln(1)
	}

	// Recommendations section
	if len(report.Recommendations) > 0 {
		pdf.Ln(5)
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 8, "Recommended Actions", "", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Arial", "", 9)
		for i, rec := range report.Recommendations {
			if i >= 4 {
				break // Limit to 4 recommendations
			}
			pdf.SetTextColor(colorSecondary[0], colorSecondary[1], colorSecondary[2])
			pdf.CellFormat(6, 5, fmt.Sprintf("%d.", i+1), "", 0, "L", false, 0, "")
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
			text := rec
			if len(text) > 95 {
				text = text[:92] + "..."
			}
			pdf.CellFormat(0, 5, text, "", 1, "L", false, 0, "")
			pdf.Ln(1)
		}
	}

	pdf.Ln(6)
}

// observation represents a key observation for the executive summary
type observation struct {
	text  string
	color [3]int
}

// generateObservations analyzes the report and generates key observations
func (g *PDFGenerator) generateObservations(report *perftest.PerformanceReport) []observation {
	var obs []observation
	summary := report.Summary

	if summary.TotalTests == 0 {
		return []observation{{
			text:  "No test runs in the reporting window",
			color: colorTextMuted,
		}}
	}

	// Pass/fail outcome
	if summary.Failed == 0 {
		obs = append(obs, observation{
			text:  fmt.Sprintf("All %d test runs passed", summary.TotalTests),
			color: colorAccent,
		})
	} else {
		obs = append(obs, observation{
			text:  fmt.Sprintf("%d of %d test runs failed", summary.Failed, summary.TotalTests),
			color: colorDanger,
		})
	}

	if summary.Regressions > 0 {
		obs = append(obs, observation{
			text:  fmt.Sprintf("%d runs regressed against their baselines", summary.Regressions),
			color: colorDanger,
		})
	}

	// Latency and error spikes across the covered runs
	var worstP99 float64
	var worstP99Test string
	var worstErr float64
	var worstErrTest string
	visualRegressions := 0
	for _, r := range report.TestResults {
		if r.Metrics.ResponseTime.P99 > worstP99 {
			worstP99 = r.Metrics.ResponseTime.P99
			worstP99Test = r.TestName
		}
		if r.Metrics.ErrorRate > worstErr {
			worstErr = r.Metrics.ErrorRate
			worstErrTest = r.TestName
		}
		if r.Visual != nil && r.Visual.RegressionDetected {
			visualRegressions++
		}
	}
	if worstP99 > 5000 {
		obs = append(obs, observation{
			text:  fmt.Sprintf("P99 latency peaked at %.0f ms in %s", worstP99, worstP99Test),
			color: colorDanger,
		})
	}
	if worstErr > 1 {
		errColor := colorWarning
		if worstErr > 5 {
			errColor = colorDanger
		}
		obs = append(obs, observation{
			text:  fmt.Sprintf("Peak error rate %.2f%% in %s", worstErr, worstErrTest),
			color: errColor,
		})
	}
	if visualRegressions > 0 {
		obs = append(obs, observation{
			text:  fmt.Sprintf("%d visual regressions detected", visualRegressions),
			color: colorWarning,
		})
	}

	// Trend direction
	switch report.TrendAnalysis.Performance.Overall {
	case stats.TrendDegrading:
		obs = append(obs, observation{
			text:  fmt.Sprintf("Overall performance trend is degrading (score %.1f)", report.TrendAnalysis.Performance.OverallScore),
			color: colorDanger,
		})
	case stats.TrendImproving:
		obs = append(obs, observation{
			text:  fmt.Sprintf("Overall performance trend is improving (score %.1f)", report.TrendAnalysis.Performance.OverallScore),
			color: colorAccent,
		})
	default:
		obs = append(obs, observation{
			text:  "Overall performance trend is stable",
			color: colorSecondary,
		})
	}

	if summary.Anomalies > 0 {
		obs = append(obs, observation{
			text:  fmt.Sprintf("%d statistical anomalies flagged in the window", summary.Anomalies),
			color: colorWarning,
		})
	}

	return obs
}

// writeActionItemsSection writes the prioritized follow-ups.
func (g *PDFGenerator) writeActionItemsSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	if len(report.ActionItems) == 0 {
		return
	}

	if pdf.GetY() > 210 {
		pdf.AddPage()
		g.addPageHeader(pdf, report, "Action Items")
	} else {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 8, "Action Items", "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	pdf.SetFont("Arial", "", 9)
	for _, item := range report.ActionItems {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			g.addPageHeader(pdf, report, "Action Items (continued)")
			pdf.SetFont("Arial", "", 9)
		}

		c := priorityColor(item.Priority)
		bulletX := pdf.GetX() + 3
		bulletY := pdf.GetY() + 2.5
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.Circle(bulletX, bulletY, 2, "F")

		pdf.SetX(pdf.GetX() + 8)
		pdf.SetFont("Arial", "B", 9)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(22, 5, strings.ToUpper(item.Priority), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 5, item.Description, "", 1, "L", false, 0, "")

		if len(item.Tests) > 0 {
			pdf.SetX(pdf.GetX() + 30)
			pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
			tests := strings.Join(item.Tests, ", ")
			if len(tests) > 80 {
				tests = tests[:77] + "..."
			}
			pdf.CellFormat(0, 5, "Tests: "+tests, "", 1, "L", false, 0, "")
		}
		pdf.Ln(1)
	}

	pdf.Ln(5)
}

// writeTrendSection writes the overall direction and per-test trends.
func (g *PDFGenerator) writeTrendSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	overview := report.TrendAnalysis.Performance

	// Overall direction banner
	dirColor := trendColor(overview.Overall)
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(38, 8, "Overall direction:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(dirColor[0], dirColor[1], dirColor[2])
	direction := string(overview.Overall)
	if direction == "" {
		direction = string(stats.TrendStable)
	}
	pdf.CellFormat(35, 8, strings.ToUpper(direction), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 8, fmt.Sprintf("score %.1f", overview.OverallScore), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(overview.Tests) == 0 {
		pdf.SetFont("Arial", "I", 11)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(0, 10, "No trend data available for this period.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	// Table header
	colWidths := []float64{36, 28, 24, 24, 20, 20, 18}
	headers := []string{"Test", "Metric", "Direction", "Slope", "R2", "Conf.", "Samples"}

	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 8)

	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	names := make([]string, 0, len(overview.Tests))
	for name := range overview.Tests {
		names = append(names, name)
	}
	sort.Strings(names)

	pdf.SetFont("Arial", "", 8)
	fill := false

	for _, name := range names {
		for _, tr := range overview.Tests[name].Trends {
			if pdf.GetY() > 260 {
				pdf.AddPage()
				g.addPageHeader(pdf, report, "Trend Analysis (continued)")
				pdf.SetFont("Arial", "", 8)
				fill = false
			}

			if fill {
				pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
			} else {
				pdf.SetFillColor(255, 255, 255)
			}
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

			testName := tr.TestName
			if len(testName) > 22 {
				testName = testName[:19] + "..."
			}
			pdf.CellFormat(colWidths[0], 6, testName, "1", 0, "L", fill, 0, "")
			pdf.CellFormat(colWidths[1], 6, GetMetricDisplayName(tr.Metric), "1", 0, "L", fill, 0, "")

			dc := trendColor(tr.Direction)
			pdf.SetTextColor(dc[0], dc[1], dc[2])
			pdf.CellFormat(colWidths[2], 6, string(tr.Direction), "1", 0, "C", fill, 0, "")
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

			pdf.CellFormat(colWidths[3], 6, fmt.Sprintf("%.4f", tr.Slope), "1", 0, "R", fill, 0, "")
			pdf.CellFormat(colWidths[4], 6, fmt.Sprintf("%.2f", tr.RSquared), "1", 0, "R", fill, 0, "")
			pdf.CellFormat(colWidths[5], 6, fmt.Sprintf("%.2f", tr.Confidence), "1", 0, "R", fill, 0, "")
			pdf.CellFormat(colWidths[6], 6, fmt.Sprintf("%d", tr.SampleCount), "1", 0, "C", fill, 0, "")

			pdf.Ln(-1)
			fill = !fill
		}
	}

	pdf.Ln(8)
}

// writeForecastsSection writes the 24h predictions table.
func (g *PDFGenerator) writeForecastsSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	predictions := report.TrendAnalysis.Predictions
	if len(predictions) == 0 {
		return
	}

	if pdf.GetY() > 220 {
		pdf.AddPage()
		g.addPageHeader(pdf, report, "Forecasts")
	} else {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 8, "Forecasts (next 24h)", "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	colWidths := []float64{34, 28, 26, 38, 24, 20}
	headers := []string{"Test", "Metric", "Predicted", "95% Interval", "Confidence", "Target"}

	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 8)

	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	names := make([]string, 0, len(predictions))
	for name := range predictions {
		names = append(names, name)
	}
	sort.Strings(names)

	pdf.SetFont("Arial", "", 8)
	fill := false

	for _, name := range names {
		for _, p := range predictions[name] {
			if pdf.GetY() > 260 {
				pdf.AddPage()
				g.addPageHeader(pdf, report, "Forecasts (continued)")
				pdf.SetFont("Arial", "", 8)
				fill = false
			}

			if fill {
				pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
			} else {
				pdf.SetFillColor(255, 255, 255)
			}
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

			testName := p.TestName
			if len(testName) > 20 {
				testName = testName[:17] + "..."
			}
			unit := GetMetricUnit(p.Metric)
			pdf.CellFormat(colWidths[0], 6, testName, "1", 0, "L", fill, 0, "")
			pdf.CellFormat(colWidths[1], 6, GetMetricDisplayName(p.Metric), "1", 0, "L", fill, 0, "")
			pdf.CellFormat(colWidths[2], 6, formatValue(p.PredictedValue, unit), "1", 0, "R", fill, 0, "")
			interval := fmt.Sprintf("%s - %s", formatValue(p.Interval.Lower, unit), formatValue(p.Interval.Upper, unit))
			pdf.CellFormat(colWidths[3], 6, interval, "1", 0, "C", fill, 0, "")
			pdf.CellFormat(colWidths[4], 6, fmt.Sprintf("%.0f%%", p.Confidence*100), "1", 0, "C", fill, 0, "")
			pdf.CellFormat(colWidths[5], 6, p.TargetTimestamp.Format("Jan 02 15:04"), "1", 0, "C", fill, 0, "")

			pdf.Ln(-1)
			fill = !fill
		}
	}

	pdf.Ln(8)
}

// chartPoint is one sample on a response-time chart.
type chartPoint struct {
	timestamp time.Time
	value     float64
}

// writeChartsSection charts mean response time per test over the window.
func (g *PDFGenerator) writeChartsSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	series := make(map[string][]chartPoint)
	for _, r := range report.TestResults {
		series[r.TestName] = append(series[r.TestName], chartPoint{
			timestamp: r.StartedAt,
			value:     r.Metrics.ResponseTime.Mean,
		})
	}

	names := make([]string, 0, len(series))
	for name, points := range series {
		if len(points) >= 2 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}

	// Busiest tests first, capped at three charts per report
	sort.Slice(names, func(i, j int) bool {
		if len(series[names[i]]) != len(series[names[j]]) {
			return len(series[names[i]]) > len(series[names[j]])
		}
		return names[i] < names[j]
	})
	if len(names) > 3 {
		names = names[:3]
	}

	chartWidth := 170.0
	chartHeight := 55.0

	pdf.AddPage()
	g.addPageHeader(pdf, report, "Performance Charts")

	for _, name := range names {
		points := series[name]
		sort.Slice(points, func(i, j int) bool { return points[i].timestamp.Before(points[j].timestamp) })

		if pdf.GetY() > 195 {
			pdf.AddPage()
			g.addPageHeader(pdf, report, "Performance Charts")
		}

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 7, fmt.Sprintf("Mean Response Time - %s (ms)", name), "", 1, "L", false, 0, "")

		chartX := 20.0
		chartY := pdf.GetY()

		g.drawChart(pdf, points, chartX, chartY, chartWidth, chartHeight, colorSecondary)

		pdf.SetY(chartY + chartHeight + 12)
	}
}

// drawChart draws a single chart with grid, area fill, and line.
func (g *PDFGenerator) drawChart(pdf *fpdf.Fpdf, points []chartPoint, x, y, width, height float64, chartColor [3]int) {
	// Chart background
	pdf.SetFillColor(255, 255, 255)
	pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
	pdf.SetLineWidth(0.3)
	pdf.Rect(x, y, width, height, "FD")

	// Find min/max for scaling
	minVal, maxVal := points[0].value, points[0].value
	for _, p := range points {
		if p.value < minVal {
			minVal = p.value
		}
		if p.value > maxVal {
			maxVal = p.value
		}
	}

	// Pad the range so the line never touches the frame
	valRange := maxVal - minVal
	if valRange < 1 {
		valRange = 10
	}
	minVal = math.Max(0, minVal-valRange*0.1)
	maxVal = maxVal + valRange*0.1

	// Horizontal grid lines with Y-axis labels
	pdf.SetFont("Arial", "", 7)
	numGridLines := 5
	for i := 0; i <= numGridLines; i++ {
		gridY := y + height - (float64(i)/float64(numGridLines))*height
		val := minVal + (float64(i)/float64(numGridLines))*(maxVal-minVal)

		pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
		pdf.SetLineWidth(0.1)
		pdf.Line(x, gridY, x+width, gridY)

		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.SetXY(x-15, gridY-2)
		pdf.CellFormat(12, 5, fmt.Sprintf("%.0f", val), "", 0, "R", false, 0, "")
	}

	startTime := points[0].timestamp.Unix()
	endTime := points[len(points)-1].timestamp.Unix()
	timeRange := float64(endTime - startTime)
	if timeRange == 0 {
		timeRange = 1
	}

	// Area fill as trapezoids between consecutive points
	pdf.SetFillColor(chartColor[0], chartColor[1], chartColor[2])
	pdf.SetAlpha(0.2, "Normal")
	for i := 1; i < len(points); i++ {
		p1 := points[i-1]
		p2 := points[i]

		x1 := x + 2 + (float64(p1.timestamp.Unix()-startTime)/timeRange)*(width-4)
		x2 := x + 2 + (float64(p2.timestamp.Unix()-startTime)/timeRange)*(width-4)
		y1 := y + height - 2 - ((p1.value-minVal)/(maxVal-minVal))*(height-4)
		y2 := y + height - 2 - ((p2.value-minVal)/(maxVal-minVal))*(height-4)

		y1 = math.Max(y+2, math.Min(y+height-2, y1))
		y2 = math.Max(y+2, math.Min(y+height-2, y2))

		pdf.Polygon([]fpdf.PointType{
			{X: x1, Y: y1},
			{X: x2, Y: y2},
			{X: x2, Y: y + height - 2},
			{X: x1, Y: y + height - 2},
		}, "F")
	}
	pdf.SetAlpha(1, "Normal")

	// Draw the line
	pdf.SetDrawColor(chartColor[0], chartColor[1], chartColor[2])
	pdf.SetLineWidth(0.8)

	prevX, prevY := 0.0, 0.0
	for i, p := range points {
		xPos := x + 2 + (float64(p.timestamp.Unix()-startTime)/timeRange)*(width-4)
		yPos := y + height - 2 - ((p.value-minVal)/(maxVal-minVal))*(height-4)
		yPos = math.Max(y+2, math.Min(y+height-2, yPos))

		if i > 0 {
			pdf.Line(prevX, prevY, xPos, yPos)
		}
		prevX, prevY = xPos, yPos
	}

	// X-axis labels
	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.SetXY(x, y+height+1)
	pdf.CellFormat(40, 4, points[0].timestamp.Format("Jan 2 15:04"), "", 0, "L", false, 0, "")
	pdf.SetXY(x+width-40, y+height+1)
	pdf.CellFormat(40, 4, points[len(points)-1].timestamp.Format("Jan 2 15:04"), "", 0, "R", false, 0, "")
}

// writeResultsSection writes the test results table.
func (g *PDFGenerator) writeResultsSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	if len(report.TestResults) == 0 {
		return
	}

	pdf.AddPage()
	g.addPageHeader(pdf, report, "Test Results")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 6, "Showing up to 50 runs. Export as CSV for the complete dataset.", "", 1, "L", false, 0, "")
	pdf.Ln(3)

	colWidths := []float64{26, 38, 16, 22, 18, 18, 18, 14}
	headers := []string{"Time", "Test", "Type", "Status", "Mean ms", "P95 ms", "Req/s", "Err %"}

	drawHeader := func() {
		pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 7)
		for i, header := range headers {
			pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	drawHeader()

	results := make([]*perftest.PerformanceTestResult, len(report.TestResults))
	copy(results, report.TestResults)
	sort.Slice(results, func(i, j int) bool { return results[i].StartedAt.Before(results[j].StartedAt) })
	if len(results) > 50 {
		results = results[:50]
	}

	pdf.SetFont("Arial", "", 7)
	fill := false

	for _, r := range results {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			g.addPageHeader(pdf, report, "Test Results (continued)")
			pdf.Ln(5)
			drawHeader()
			pdf.SetFont("Arial", "", 7)
			fill = false
		}

		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		pdf.CellFormat(colWidths[0], 6, r.StartedAt.Format("Jan 02 15:04"), "1", 0, "L", fill, 0, "")

		testName := r.TestName
		if len(testName) > 24 {
			testName = testName[:21] + "..."
		}
		pdf.CellFormat(colWidths[1], 6, testName, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[2], 6, r.TestType, "1", 0, "C", fill, 0, "")

		status := "pass"
		statusColor := colorAccent
		if r.RegressionDetected {
			status = "regression"
			statusColor = colorDanger
		} else if r.Visual != nil && r.Visual.RegressionDetected {
			status = "visual"
			statusColor = colorWarning
		} else if !r.Passed {
			status = "fail"
			statusColor = colorDanger
		}
		pdf.SetTextColor(statusColor[0], statusColor[1], statusColor[2])
		pdf.CellFormat(colWidths[3], 6, status, "1", 0, "C", fill, 0, "")
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		pdf.CellFormat(colWidths[4], 6, fmt.Sprintf("%.1f", r.Metrics.ResponseTime.Mean), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[5], 6, fmt.Sprintf("%.1f", r.Metrics.ResponseTime.P95), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[6], 6, fmt.Sprintf("%.1f", r.Metrics.Throughput.RequestsPerSecond), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[7], 6, fmt.Sprintf("%.2f", r.Metrics.ErrorRate), "1", 0, "R", fill, 0, "")

		pdf.Ln(-1)
		fill = !fill
	}

	pdf.Ln(10)
}

// writeAnomaliesSection writes the detected anomalies table.
func (g *PDFGenerator) writeAnomaliesSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	anomalies := report.TrendAnalysis.Anomalies
	if len(anomalies) == 0 {
		return
	}

	if pdf.GetY() > 200 {
		pdf.AddPage()
		g.addPageHeader(pdf, report, "Anomalies")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Detected Anomalies", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	colWidths := []float64{26, 36, 28, 20, 20, 20, 20}
	headers := []string{"Time", "Test", "Metric", "Severity", "Value", "Expected", "StdDev"}

	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 8)

	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	fill := false
	shown := 0

	for _, a := range anomalies {
		if shown >= 30 {
			break
		}
		if pdf.GetY() > 260 {
			pdf.AddPage()
			g.addPageHeader(pdf, report, "Anomalies (continued)")
			pdf.SetFont("Arial", "", 8)
			fill = false
		}

		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		pdf.CellFormat(colWidths[0], 6, a.Timestamp.Format("Jan 02 15:04"), "1", 0, "L", fill, 0, "")

		testName := a.TestName
		if len(testName) > 22 {
			testName = testName[:19] + "..."
		}
		pdf.CellFormat(colWidths[1], 6, testName, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[2], 6, GetMetricDisplayName(a.Metric), "1", 0, "L", fill, 0, "")

		sc := anomalySeverityColor(a.Severity)
		pdf.SetTextColor(sc[0], sc[1], sc[2])
		pdf.CellFormat(colWidths[3], 6, string(a.Severity), "1", 0, "C", fill, 0, "")
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		unit := GetMetricUnit(a.Metric)
		pdf.CellFormat(colWidths[4], 6, formatValue(a.Value, unit), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[5], 6, formatValue(a.Expected, unit), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[6], 6, fmt.Sprintf("%.1f", a.Deviation), "1", 0, "R", fill, 0, "")

		pdf.Ln(-1)
		fill = !fill
		shown++
	}

	if len(anomalies) > shown {
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("... and %d more anomalies", len(anomalies)-shown), "", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
}

// writeAlertsSection writes the active alerts table.
func (g *PDFGenerator) writeAlertsSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	if len(report.ActiveAlerts) == 0 {
		return
	}

	if pdf.GetY() > 200 {
		pdf.AddPage()
		g.addPageHeader(pdf, report, "Active Alerts")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Active Alerts", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	colWidths := []float64{26, 20, 36, 68, 20}
	headers := []string{"Time", "Severity", "Test", "Message", "Status"}

	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 8)

	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	fill := false

	for _, alert := range report.ActiveAlerts {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			g.addPageHeader(pdf, report, "Active Alerts (continued)")
			pdf.SetFont("Arial", "", 8)
			fill = false
		}

		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		pdf.CellFormat(colWidths[0], 6, alert.Timestamp.Format("Jan 02 15:04"), "1", 0, "L", fill, 0, "")

		sc := severityColor(alert.Severity)
		pdf.SetTextColor(sc[0], sc[1], sc[2])
		pdf.CellFormat(colWidths[1], 6, string(alert.Severity), "1", 0, "C", fill, 0, "")
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		testName := alert.TestName
		if len(testName) > 22 {
			testName = testName[:19] + "..."
		}
		pdf.CellFormat(colWidths[2], 6, testName, "1", 0, "L", fill, 0, "")

		msg := alert.Message
		if len(msg) > 48 {
			msg = msg[:45] + "..."
		}
		pdf.CellFormat(colWidths[3], 6, msg, "1", 0, "L", fill, 0, "")

		if alert.Acknowledged {
			pdf.SetTextColor(colorAccent[0], colorAccent[1], colorAccent[2])
			pdf.CellFormat(colWidths[4], 6, "Ack", "1", 0, "C", fill, 0, "")
		} else {
			pdf.SetTextColor(colorDanger[0], colorDanger[1], colorDanger[2])
			pdf.CellFormat(colWidths[4], 6, "Active", "1", 0, "C", fill, 0, "")
		}
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		pdf.Ln(-1)
		fill = !fill
	}

	pdf.Ln(10)
}

// writeBaselinesSection writes the recorded baselines table.
func (g *PDFGenerator) writeBaselinesSection(pdf *fpdf.Fpdf, report *perftest.PerformanceReport) {
	if len(report.Baselines) == 0 {
		return
	}

	if pdf.GetY() > 200 {
		pdf.AddPage()
		g.addPageHeader(pdf, report, "Baselines")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Recorded Baselines", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	colWidths := []float64{40, 18, 18, 22, 22, 25, 25}
	headers := []string{"Descriptor", "Type", "Samples", "Mean ms", "P95 ms", "Req/s", "Updated"}

	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 8)

	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	baselines := make([]*baselineRow, 0, len(report.Baselines))
	for _, b := range report.Baselines {
		baselines = append(baselines, &baselineRow{
			descriptor: b.Descriptor,
			testType:   b.TestType,
			samples:    b.SampleCount,
			mean:       b.Metrics.ResponseTime.Mean,
			p95:        b.Metrics.ResponseTime.P95,
			throughput: b.Metrics.Throughput.RequestsPerSecond,
			updatedAt:  b.UpdatedAt,
		})
	}
	sort.Slice(baselines, func(i, j int) bool { return baselines[i].descriptor < baselines[j].descriptor })

	pdf.SetFont("Arial", "", 8)
	fill := false

	for _, b := range baselines {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			g.addPageHeader(pdf, report, "Baselines (continued)")
			pdf.SetFont("Arial", "", 8)
			fill = false
		}

		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		descriptor := b.descriptor
		if len(descriptor) > 25 {
			descriptor = descriptor[:22] + "..."
		}
		pdf.CellFormat(colWidths[0], 6, descriptor, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[1], 6, b.testType, "1", 0, "C", fill, 0, "")
		pdf.CellFormat(colWidths[2], 6, fmt.Sprintf("%d", b.samples), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(colWidths[3], 6, fmt.Sprintf("%.1f", b.mean), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[4], 6, fmt.Sprintf("%.1f", b.p95), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[5], 6, fmt.Sprintf("%.1f", b.throughput), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(colWidths[6], 6, b.updatedAt.Format("Jan 02 15:04"), "1", 0, "C", fill, 0, "")

		pdf.Ln(-1)
		fill = !fill
	}

	pdf.Ln(10)
}

// baselineRow is the flattened table form of a baseline record.
type baselineRow struct {
	descriptor string
	testType   string
	samples    int
	mean       float64
	p95        float64
	throughput float64
	updatedAt  time.Time
}

// addPageHeader adds a consistent header to content pages.
func (g *PDFGenerator) addPageHeader(pdf *fpdf.Fpdf, report *perftest.PerformanceReport, section string) {
	pageWidth, _ := pdf.GetPageSize()

	// Top line
	pdf.SetDrawColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.SetLineWidth(0.5)
	pdf.Line(20, 15, pageWidth-20, 15)

	// Header text
	pdf.SetY(18)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 5, "PERFWATCH ANALYSIS REPORT", "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 5, report.ID, "", 1, "R", false, 0, "")

	// Section title
	pdf.SetY(30)
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, section, "", 1, "L", false, 0, "")

	pdf.Ln(5)
}

// addPageNumbers adds page numbers to all pages except the first (cover).
func (g *PDFGenerator) addPageNumbers(pdf *fpdf.Fpdf) {
	// Disable auto page break while adding footers to prevent creating new pages
	pdf.SetAutoPageBreak(false, 0)

	totalPages := pdf.PageCount()

	for i := 2; i <= totalPages; i++ {
		pdf.SetPage(i)
		pageWidth, pageHeight := pdf.GetPageSize()

		pdf.SetY(pageHeight - 15)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])

		pageNum := i - 1
		totalContent := totalPages - 1
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of %d", pageNum, totalContent), "", 0, "C", false, 0, "")

		// Bottom line
		pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
		pdf.SetLineWidth(0.3)
		pdf.Line(20, pageHeight-20, pageWidth-20, pageHeight-20)
	}
}

// getCountColor returns green for zero and red for any positive count.
func getCountColor(count int) [3]int {
	if count > 0 {
		return colorDanger
	}
	return colorAccent
}

// severityColor maps an alert severity to its display color.
func severityColor(s alerting.Severity) [3]int {
	switch s {
	case alerting.SeverityCritical:
		return colorDanger
	case alerting.SeverityMajor:
		return [3]int{230, 126, 34} // Orange
	case alerting.SeverityModerate:
		return colorWarning
	default:
		return colorSecondary
	}
}

// anomalySeverityColor maps an anomaly severity to its display color.
func anomalySeverityColor(s stats.AnomalySeverity) [3]int {
	switch s {
	case stats.AnomalyHigh:
		return colorDanger
	case stats.AnomalyMedium:
		return colorWarning
	default:
		return colorSecondary
	}
}

// trendColor maps a trend direction to its display color.
func trendColor(d stats.TrendDirection) [3]int {
	switch d {
	case stats.TrendImproving:
		return colorAccent
	case stats.TrendDegrading:
		return colorDanger
	default:
		return colorSecondary
	}
}

// priorityColor maps an action item priority to its display color.
func priorityColor(priority string) [3]int {
	switch priority {
	case "critical":
		return colorDanger
	case "high":
		return [3]int{230, 126, 34} // Orange
	case "medium":
		return colorWarning
	default:
		return colorTextMuted
	}
}
