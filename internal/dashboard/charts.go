package dashboard

import (
	"io"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/qepting91/reddit-lanes/internal/domain"
)

// chartData is everything the page renders, recomputed when the lanes change.
type chartData struct {
	Subreddits []string
	PostCounts []int
	AvgScores  []float64
	Keywords   []string
	Mentions   []int
}

func buildChartData(lanes []domain.Lane, keywords []string) chartData {
	var d chartData
	kwCounts := make(map[string]int, len(keywords))
	for _, l := range lanes {
		d.Subreddits = append(d.Subreddits, l.Subreddit)
		d.PostCounts = append(d.PostCounts, len(l.Posts))

		total := 0
		for _, p := range l.Posts {
			total += p.Score
			title := strings.ToLower(p.Title)
			for _, k := range keywords {
				if strings.Contains(title, k) {
					kwCounts[k]++
				}
			}
		}
		avg := 0.0
		if len(l.Posts) > 0 {
			avg = float64(total) / float64(len(l.Posts))
		}
		d.AvgScores = append(d.AvgScores, avg)
	}

	for k := range kwCounts {
		d.Keywords = append(d.Keywords, k)
	}
	sort.Slice(d.Keywords, func(i, j int) bool {
		a, b := d.Keywords[i], d.Keywords[j]
		if kwCounts[a] != kwCounts[b] {
			return kwCounts[a] > kwCounts[b]
		}
		return a < b
	})
	for _, k := range d.Keywords {
		d.Mentions = append(d.Mentions, kwCounts[k])
	}
	return d
}

func renderPage(w io.Writer, d chartData) error {
	// 1. Lane share
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Reddit Lanes"}),
		charts.WithTitleOpts(opts.Title{Title: "Posts per Lane"}),
	)
	pieItems := make([]opts.PieData, 0, len(d.Subreddits))
	for i, sub := range d.Subreddits {
		pieItems = append(pieItems, opts.PieData{Name: "r/" + sub, Value: d.PostCounts[i]})
	}
	pie.AddSeries("Posts", pieItems)

	// 2. Average score
	scores := charts.NewBar()
	scores.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Average Score"}))
	scoreItems := make([]opts.BarData, 0, len(d.AvgScores))
	for _, v := range d.AvgScores {
		scoreItems = append(scoreItems, opts.BarData{Value: v})
	}
	scores.SetXAxis(d.Subreddits).AddSeries("Score", scoreItems)

	// 3. Keyword velocity
	kw := charts.NewBar()
	kw.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Keyword Velocity"}))
	kwItems := make([]opts.BarData, 0, len(d.Mentions))
	for _, v := range d.Mentions {
		kwItems = append(kwItems, opts.BarData{Value: v})
	}
	kw.SetXAxis(d.Keywords).AddSeries("Mentions", kwItems)

	page := components.NewPage()
	page.PageTitle = "Reddit Lanes"
	page.AddCharts(pie, scores, kw)
	return page.Render(w)
}
