package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type sourceStat struct {
	fetches int64
	rows    int64
}

var (
	warnCount    int64
	errorCount   int64
	cacheHits    int64
	cacheMisses  int64
	fallbackHits int64
	sources      sync.Map // map[string]*sourceStat
)

func recordWarn(string)  { atomic.AddInt64(&warnCount, 1) }
func recordError(string) { atomic.AddInt64(&errorCount, 1) }

// IncrementCacheHit counts a cache lookup that returned live data.
func IncrementCacheHit() { atomic.AddInt64(&cacheHits, 1) }

// IncrementCacheMiss counts a cache lookup that fell through to a fetch.
func IncrementCacheMiss() { atomic.AddInt64(&cacheMisses, 1) }

// IncrementFallback counts an adapter answering from a fallback tier.
func IncrementFallback() { atomic.AddInt64(&fallbackHits, 1) }

// CounterSnapshot is a point-in-time copy of the report counters.
type CounterSnapshot struct {
	Warns        int64
	Errors       int64
	CacheHits    int64
	CacheMisses  int64
	FallbackHits int64
}

// Counters returns the current report counters.
func Counters() CounterSnapshot {
	return CounterSnapshot{
		Warns:        atomic.LoadInt64(&warnCount),
		Errors:       atomic.LoadInt64(&errorCount),
		CacheHits:    atomic.LoadInt64(&cacheHits),
		CacheMisses:  atomic.LoadInt64(&cacheMisses),
		FallbackHits: atomic.LoadInt64(&fallbackHits),
	}
}

// RecordFetch counts an upstream fetch and the rows it yielded.
func RecordFetch(source string, rows int) {
	v, _ := sources.LoadOrStore(source, &sourceStat{})
	st := v.(*sourceStat)
	atomic.AddInt64(&st.fetches, 1)
	atomic.AddInt64(&st.rows, int64(rows))
}

// StartReport begins periodic logging of runtime and fetch statistics,
// publishing the same numbers to CloudWatch when it is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	sourceData := map[string]map[string]int64{}
	sources.Range(func(k, v any) bool {
		name := k.(string)
		st := v.(*sourceStat)
		sourceData[name] = map[string]int64{
			"fetches": atomic.LoadInt64(&st.fetches),
			"rows":    atomic.LoadInt64(&st.rows),
		}
		return true
	})

	fields := Fields{
		"errors":        atomic.LoadInt64(&errorCount),
		"warns":         atomic.LoadInt64(&warnCount),
		"cache_hits":    atomic.LoadInt64(&cacheHits),
		"cache_misses":  atomic.LoadInt64(&cacheMisses),
		"fallback_hits": atomic.LoadInt64(&fallbackHits),
		"goroutines":    runtime.NumGoroutine(),
		"sources":       sourceData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorCount)))},
		{MetricName: aws.String("Warns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnCount)))},
		{MetricName: aws.String("CacheHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&cacheHits)))},
		{MetricName: aws.String("CacheMisses"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&cacheMisses)))},
		{MetricName: aws.String("FallbackHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&fallbackHits)))},
	}
	for name, stats := range sourceData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("SourceFetches"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Source"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["fetches"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("SourceRows"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Source"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["rows"])),
			},
		)
	}
	publishMetrics(ctx, data)
}
