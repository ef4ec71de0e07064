package detection_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haivivi/voiceguard/go/pkg/audio/audiotest"
	"github.com/haivivi/voiceguard/go/pkg/cache"
	"github.com/haivivi/voiceguard/go/pkg/classifier"
	"github.com/haivivi/voiceguard/go/pkg/detection"
	"github.com/haivivi/voiceguard/go/pkg/features"
	"github.com/haivivi/voiceguard/go/pkg/kv"
	"github.com/haivivi/voiceguard/go/pkg/ratelimit"
	"github.com/haivivi/voiceguard/go/pkg/waveform"
)

const rate = 22050

type options struct {
	store   kv.Store
	limiter *ratelimit.Limiter
	model   *classifier.Holder
	timeout time.Duration
	reg     *prometheus.Registry
}

func newService(t *testing.T, o options) *detection.Service {
	t.Helper()
	ext := features.New(features.DefaultConfig())
	if o.model == nil {
		e, err := (&classifier.Loader{Check: ext.Schema().Check}).LoadDefault(context.Background(), "", ext.Schema().Names)
		if err != nil {
			t.Fatalf("LoadDefault: %v", err)
		}
		o.model = classifier.NewHolder(e)
	}
	cfg := detection.Config{
		Normalizer: waveform.New(waveform.Config{}),
		Extractor:  ext,
		Model:      o.model,
		Limiter:    o.limiter,
		Timeout:    o.timeout,
	}
	if o.store != nil {
		cfg.Cache = cache.New[detection.Result](cache.Config{Store: o.store})
	}
	if o.reg != nil {
		cfg.Metrics = detection.NewMetrics(o.reg)
	}
	s, err := detection.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func speech(t *testing.T, seconds float64) []byte {
	t.Helper()
	voiced := audiotest.Voiced(140, rate, seconds, 0.6)
	return audiotest.WAV(t, voiced, rate, 1)
}

func kindOf(t *testing.T, err error) detection.Kind {
	t.Helper()
	var e *detection.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v (%T) is not *detection.Error", err, err)
	}
	return e.Kind
}

func TestEndToEndCacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	s := newService(t, options{store: kv.NewMemory(nil), reg: reg})
	audio := speech(t, 5)
	req := detection.Request{Audio: audio, Language: "english", Credential: "demo"}

	first, err := s.Detect(ctx, req)
	if err != nil {
		t.Fatalf("first Detect: %v", err)
	}
	r1 := first.Result
	if r1.Cached {
		t.Fatal("first request was served from cache")
	}
	if r1.Prediction != classifier.LabelAI && r1.Prediction != classifier.LabelHuman {
		t.Fatalf("prediction = %q", r1.Prediction)
	}
	if r1.Confidence < 0.5 || r1.Confidence > 1 {
		t.Fatalf("confidence = %v", r1.Confidence)
	}
	if r1.AudioDurationSeconds < 4.99 || r1.AudioDurationSeconds > 5.01 {
		t.Fatalf("audio duration = %v", r1.AudioDurationSeconds)
	}
	if r1.Language != "english" || r1.ModelVersion != "1.0.0-heuristic" {
		t.Fatalf("result = %+v", r1)
	}

	second, err := s.Detect(ctx, req)
	if err != nil {
		t.Fatalf("second Detect: %v", err)
	}
	r2 := second.Result
	if !r2.Cached {
		t.Fatal("second request missed the cache")
	}
	if r2.Prediction != r1.Prediction || r2.Confidence != r1.Confidence ||
		r2.Probability != r1.Probability || r2.AudioDurationSeconds != r1.AudioDurationSeconds {
		t.Fatalf("cached result %+v differs from %+v", r2, r1)
	}
	if r2.ProcessingTimeMS > r1.ProcessingTimeMS {
		t.Fatalf("cache hit took %vms, compute took %vms", r2.ProcessingTimeMS, r1.ProcessingTimeMS)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"voiceguard_requests_total", "voiceguard_cache_lookups_total", "voiceguard_stage_duration_seconds"} {
		if !seen[name] {
			t.Errorf("metric %s not exported", name)
		}
	}
}

func TestDeterministic(t *testing.T) {
	ctx := context.Background()
	audio := speech(t, 2)
	req := detection.Request{Audio: audio, Language: "tamil"}

	a, err := newService(t, options{}).Detect(ctx, req)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	b, err := newService(t, options{}).Detect(ctx, req)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if a.Result.Probability != b.Result.Probability || a.Result.Prediction != b.Result.Prediction {
		t.Fatalf("results differ: %+v vs %+v", a.Result, b.Result)
	}
}

func TestSilentAudioClassifies(t *testing.T) {
	s := newService(t, options{})
	raw := audiotest.WAV(t, audiotest.Silence(rate, 2), rate, 1)
	out, err := s.Detect(context.Background(), detection.Request{Audio: raw, Language: "hindi"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if out.Result.Confidence < 0.5 {
		t.Fatalf("confidence = %v", out.Result.Confidence)
	}
}

func TestInputErrors(t *testing.T) {
	tests := []struct {
		name  string
		audio func(t *testing.T) []byte
		lang  string
		want  detection.Kind
	}{
		{"language", func(t *testing.T) []byte { return speech(t, 2) }, "french", detection.KindInvalidLanguage},
		{"language case", func(t *testing.T) []byte { return speech(t, 2) }, "English", detection.KindInvalidLanguage},
		{"garbage", func(*testing.T) []byte { return []byte("definitely not audio") }, "english", detection.KindDecode},
		{"empty", func(*testing.T) []byte { return nil }, "english", detection.KindEmptyAudio},
		{"too short", func(t *testing.T) []byte { return speech(t, 0.5) }, "english", detection.KindInvalidDuration},
		{"too long", func(t *testing.T) []byte { return speech(t, 61) }, "english", detection.KindInvalidDuration},
	}
	s := newService(t, options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Detect(context.Background(), detection.Request{Audio: tt.audio(t), Language: tt.lang})
			if got := kindOf(t, err); got != tt.want {
				t.Fatalf("kind = %s, want %s (%v)", got, tt.want, err)
			}
			if !tt.want.IsInput() {
				t.Fatalf("%s should be an input error", tt.want)
			}
		})
	}
}

func TestRateLimitedBeforeDecoding(t *testing.T) {
	ctx := context.Background()
	lim := ratelimit.New(ratelimit.Config{Limits: ratelimit.Limits{PerMinute: 2, PerHour: 100}})
	s := newService(t, options{limiter: lim})
	audio := speech(t, 1.5)

	for i := 0; i < 2; i++ {
		out, err := s.Detect(ctx, detection.Request{Audio: audio, Language: "telugu", Credential: "caller"})
		if err != nil {
			t.Fatalf("Detect %d: %v", i, err)
		}
		if out.Quota.MinuteRemaining != 1-i {
			t.Fatalf("minute remaining = %d", out.Quota.MinuteRemaining)
		}
	}

	_, err := s.Detect(ctx, detection.Request{Audio: []byte("junk"), Language: "telugu", Credential: "caller"})
	var e *detection.Error
	if !errors.As(err, &e) || e.Kind != detection.KindRateLimited {
		t.Fatalf("err = %v, want rate_limited", err)
	}
	if e.RetryAfter <= 0 || e.RetryAfter > time.Minute {
		t.Fatalf("retry after = %v", e.RetryAfter)
	}

	// Invalid language is rejected without consuming quota.
	_, err = s.Detect(ctx, detection.Request{Audio: audio, Language: "klingon", Credential: "other"})
	if kindOf(t, err) != detection.KindInvalidLanguage {
		t.Fatalf("err = %v", err)
	}
	q, err := lim.Remaining(ctx, "other")
	if err != nil || q.MinuteRemaining != 2 {
		t.Fatalf("Remaining = %+v, %v", q, err)
	}

	_, err = s.Detect(ctx, detection.Request{Audio: audio, Language: "telugu"})
	if kindOf(t, err) != detection.KindInvalidCredential {
		t.Fatalf("err = %v, want invalid_credential", err)
	}
}

func TestModelErrors(t *testing.T) {
	ctx := context.Background()
	audio := speech(t, 1.5)

	s := newService(t, options{model: classifier.NewHolder(nil)})
	_, err := s.Detect(ctx, detection.Request{Audio: audio, Language: "english"})
	if kindOf(t, err) != detection.KindModelNotLoaded {
		t.Fatalf("err = %v", err)
	}
	if err := s.CheckModel(); !errors.Is(err, classifier.ErrModelNotLoaded) {
		t.Fatalf("CheckModel = %v", err)
	}

	small, err := classifier.NewEnsemble("tiny", []string{"a", "b", "c"}, classifier.IdentityScaler(3), []classifier.Weighted{
		{Name: "lr", Weight: 1, Member: &classifier.Logistic{Coef: []float64{1, 1, 1}}},
	})
	if err != nil {
		t.Fatalf("NewEnsemble: %v", err)
	}
	s = newService(t, options{model: classifier.NewHolder(small)})
	_, err = s.Detect(ctx, detection.Request{Audio: audio, Language: "english"})
	if kindOf(t, err) != detection.KindDimensionMismatch {
		t.Fatalf("err = %v", err)
	}
	if err := s.CheckModel(); !errors.Is(err, classifier.ErrDimensionMismatch) {
		t.Fatalf("CheckModel = %v", err)
	}
}

type downStore struct{}

func (downStore) Get(context.Context, kv.Key) ([]byte, error) { return nil, errors.New("down") }
func (downStore) Set(context.Context, kv.Key, []byte, time.Duration) error { return errors.New("down") }
func (downStore) Delete(context.Context, kv.Key) error { return errors.New("down") }
func (downStore) Close() error { return nil }

func TestCacheFailureDegradesToCompute(t *testing.T) {
	s := newService(t, options{store: downStore{}})
	req := detection.Request{Audio: speech(t, 1.5), Language: "malayalam"}
	for i := 0; i < 2; i++ {
		out, err := s.Detect(context.Background(), req)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if out.Result.Cached {
			t.Fatal("result claims to be cached")
		}
	}
}

func TestTimeout(t *testing.T) {
	s := newService(t, options{timeout: time.Nanosecond})
	_, err := s.Detect(context.Background(), detection.Request{Audio: speech(t, 3), Language: "english"})
	if kindOf(t, err) != detection.KindTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestTimeoutFor(t *testing.T) {
	tests := []struct {
		max, want time.Duration
	}{
		{0, detection.DefaultTimeout},
		{10 * time.Second, detection.DefaultTimeout},
		{time.Minute, 12 * time.Second},
		{2 * time.Minute, 24 * time.Second},
	}
	for _, tt := range tests {
		if got := detection.TimeoutFor(tt.max); got != tt.want {
			t.Errorf("TimeoutFor(%v) = %v, want %v", tt.max, got, tt.want)
		}
	}
}

func TestMaxDurationClipWithinDefaultTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("processes a full minute of audio")
	}
	const srcRate = 44100
	voiced := audiotest.Voiced(140, srcRate, 60, 0.6)
	audio := audiotest.WAV(t, audiotest.Interleave(voiced, voiced), srcRate, 2)

	s := newService(t, options{})
	start := time.Now()
	out, err := s.Detect(context.Background(), detection.Request{Audio: audio, Language: "english", Credential: "demo"})
	if err != nil {
		t.Fatalf("Detect after %v: %v", time.Since(start), err)
	}
	if d := out.Result.AudioDurationSeconds; d < 59.99 || d > 60.01 {
		t.Fatalf("audio duration = %v, want 60", d)
	}
}

func TestConcurrentIdenticalRequests(t *testing.T) {
	s := newService(t, options{store: kv.NewMemory(nil)})
	req := detection.Request{Audio: speech(t, 2), Language: "english"}

	var wg sync.WaitGroup
	results := make([]detection.Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Detect(context.Background(), req)
			results[i], errs[i] = out.Result, err
		}()
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Detect %d: %v", i, errs[i])
		}
		if results[i].Probability != results[0].Probability {
			t.Fatalf("result %d differs", i)
		}
	}
}

func TestKindOf(t *testing.T) {
	if detection.KindOf(errors.New("x")) != detection.KindInternal {
		t.Fatal("foreign error should be internal")
	}
	err := &detection.Error{Kind: detection.KindTimeout, Message: "slow"}
	if detection.KindOf(err) != detection.KindTimeout {
		t.Fatal("KindOf lost the kind")
	}
}
