package usecase

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
	"github.com/kirillkom/property-search-assistant/internal/core/ports"
)

const (
	neutralFeatureScore  = 0.5
	freshnessHalfLife    = 30 * 24 * time.Hour
	recentEditBoost      = 0.1
	recentEditWindow     = 7 * 24 * time.Hour
	hybridBlendShare     = 0.5
	degradationSeller    = "seller_stats_unavailable"
	degradationEngage    = "engagement_stats_unavailable"
	degradationPrefs     = "user_preferences_unavailable"
)

// Match reasons surfaced to the summarizer alongside each candidate.
const (
	reasonDistrictMatch  = "district match"
	reasonBedroomsMatch  = "bedrooms match"
	reasonWithinBudget   = "price within budget"
	reasonNewlyListed    = "newly listed"
	reasonVerifiedSeller = "verified listing"
)

// RerankContext carries per-turn inputs for one rerank call.
type RerankContext struct {
	Query       string
	UserID      string
	Requirement domain.Requirement
	Weights     domain.RerankWeights
	Now         time.Time
}

// Reranker re-orders a short candidate list with five weighted feature
// groups. Auxiliary lookups degrade to a neutral 0.5 instead of failing the
// call; the training log is fire-and-forget.
type Reranker struct {
	sellerStats  ports.SellerStatsProvider
	engagement   ports.EngagementStatsProvider
	preferences  ports.PreferenceProvider
	logSink      ports.RankingLogSink
	statsTimeout time.Duration
}

func NewReranker(
	sellerStats ports.SellerStatsProvider,
	engagement ports.EngagementStatsProvider,
	preferences ports.PreferenceProvider,
	logSink ports.RankingLogSink,
	statsTimeout time.Duration,
) *Reranker {
	if statsTimeout <= 0 {
		statsTimeout = 3 * time.Second
	}
	return &Reranker{
		sellerStats:  sellerStats,
		engagement:   engagement,
		preferences:  preferences,
		logSink:      logSink,
		statsTimeout: statsTimeout,
	}
}

// Rerank computes feature scores, blends them with the hybrid score and
// returns the list sorted by final score descending, hybrid order preserved
// on ties. The second return value names degraded lookups.
func (r *Reranker) Rerank(ctx context.Context, candidates []domain.Candidate, rctx RerankContext) ([]domain.Candidate, []string) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if !rctx.Weights.Valid() {
		rctx.Weights = domain.DefaultRerankWeights()
	}
	if rctx.Now.IsZero() {
		rctx.Now = time.Now().UTC()
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	prefs, prefsOK := r.lookupPreferences(ctx, rctx.UserID)

	type lookupResult struct {
		seller         float64
		engagement     float64
		sellerDegraded bool
		engageDegraded bool
	}
	results := make([]lookupResult, len(out))

	// Stats lookups fan out per candidate batch; everything else in the
	// rerank is sequential arithmetic.
	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i].seller, results[i].sellerDegraded = r.lookupSellerReputation(ctx, out[i])
			results[i].engagement, results[i].engageDegraded = r.lookupEngagement(ctx, out[i])
		}(i)
	}
	wg.Wait()

	degraded := map[string]struct{}{}
	if !prefsOK && rctx.UserID != "" {
		degraded[degradationPrefs] = struct{}{}
	}

	for i := range out {
		features := domain.RerankFeatures{
			Quality:          qualityFeature(out[i].Listing),
			SellerReputation: results[i].seller,
			Freshness:        freshnessFeature(out[i].Listing, rctx.Now),
			Engagement:       results[i].engagement,
			Personalization:  personalizationFeature(out[i].Listing, rctx.UserID, prefs, prefsOK),
		}
		if results[i].sellerDegraded {
			degraded[degradationSeller] = struct{}{}
		}
		if results[i].engageDegraded {
			degraded[degradationEngage] = struct{}{}
		}

		w := rctx.Weights
		rerankScore := w.Quality*features.Quality +
			w.SellerReputation*features.SellerReputation +
			w.Freshness*features.Freshness +
			w.Engagement*features.Engagement +
			w.Personalization*features.Personalization

		out[i].Features = features
		out[i].RerankScore = rerankScore
		out[i].FinalScore = hybridBlendShare*out[i].HybridScore + hybridBlendShare*rerankScore
		out[i].MatchedReasons = matchedReasons(out[i].Listing, rctx.Requirement, rctx.Now)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})

	if r.logSink != nil {
		entries := buildRankingLog(rctx, out)
		go r.logSink.LogRanking(entries)
	}

	names := make([]string, 0, len(degraded))
	for name := range degraded {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names
}

func (r *Reranker) lookupSellerReputation(ctx context.Context, c domain.Candidate) (float64, bool) {
	if r.sellerStats == nil || c.Listing == nil || c.Listing.SellerID == "" {
		return neutralFeatureScore, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.statsTimeout)
	defer cancel()

	stats, err := r.sellerStats.SellerStats(lookupCtx, c.Listing.SellerID)
	if err != nil {
		return neutralFeatureScore, true
	}
	return sellerReputationScore(stats), false
}

func (r *Reranker) lookupEngagement(ctx context.Context, c domain.Candidate) (float64, bool) {
	if r.engagement == nil {
		return neutralFeatureScore, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.statsTimeout)
	defer cancel()

	stats, err := r.engagement.EngagementStats(lookupCtx, c.ID)
	if err != nil {
		return neutralFeatureScore, true
	}
	return engagementScore(stats), false
}

func (r *Reranker) lookupPreferences(ctx context.Context, userID string) (domain.UserPreferences, bool) {
	if r.preferences == nil || strings.TrimSpace(userID) == "" {
		return domain.UserPreferences{}, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, r.statsTimeout)
	defer cancel()

	prefs, err := r.preferences.UserPreferences(lookupCtx, userID)
	if err != nil {
		return domain.UserPreferences{}, false
	}
	return prefs, true
}

// qualityFeature blends listing-data completeness with the verification flag.
func qualityFeature(listing *domain.ListingSnapshot) float64 {
	if listing == nil {
		return 0
	}

	completeness := 0.0
	if listing.ImageCount > 0 {
		completeness += 1.0 / 3.0
	}
	completeness += clamp01(float64(listing.DescriptionLength)/400.0) / 3.0
	if requiredFieldsFilled(*listing) {
		completeness += 1.0 / 3.0
	}

	verified := 0.0
	if listing.Verified {
		verified = 1.0
	}
	return 0.6*completeness + 0.4*verified
}

func requiredFieldsFilled(listing domain.ListingSnapshot) bool {
	return listing.PropertyType != "" && listing.District != "" && listing.Price > 0 && listing.Bedrooms > 0
}

func sellerReputationScore(stats domain.SellerStats) float64 {
	responseRate := clamp01(stats.ResponseRate)
	age := clamp01(float64(stats.AccountAgeDays) / 365.0)
	return 0.7*responseRate + 0.3*age
}

// freshnessFeature decays exponentially over listing age with a small boost
// for recent edits.
func freshnessFeature(listing *domain.ListingSnapshot, now time.Time) float64 {
	if listing == nil || listing.ListedAt.IsZero() {
		return neutralFeatureScore
	}
	age := now.Sub(listing.ListedAt)
	if age < 0 {
		age = 0
	}
	score := math.Exp(-math.Ln2 * age.Hours() / freshnessHalfLife.Hours())
	if !listing.EditedAt.IsZero() && now.Sub(listing.EditedAt) <= recentEditWindow {
		score += recentEditBoost
	}
	return clamp01(score)
}

func engagementScore(stats domain.EngagementStats) float64 {
	views := float64(stats.Views)
	inquiries := float64(stats.Inquiries)
	normViews := views / (views + 100)
	normInquiries := inquiries / (inquiries + 10)
	ctr := 0.0
	if stats.Views > 0 {
		ctr = clamp01(float64(stats.Clicks) / views)
	}
	return clamp01(0.4*normViews + 0.4*normInquiries + 0.2*ctr)
}

// personalizationFeature measures overlap between candidate attributes and a
// known user's stored preferences. Anonymous users score a uniform 0.
func personalizationFeature(listing *domain.ListingSnapshot, userID string, prefs domain.UserPreferences, prefsOK bool) float64 {
	if strings.TrimSpace(userID) == "" || !prefsOK || listing == nil {
		return 0
	}

	checks, matches := 0, 0
	if len(prefs.Districts) > 0 {
		checks++
		if containsFold(prefs.Districts, listing.District) {
			matches++
		}
	}
	if len(prefs.PropertyTypes) > 0 {
		checks++
		if containsFold(prefs.PropertyTypes, listing.PropertyType) {
			matches++
		}
	}
	if prefs.PriceMin != nil || prefs.PriceMax != nil {
		checks++
		inRange := true
		if prefs.PriceMin != nil && listing.Price < *prefs.PriceMin {
			inRange = false
		}
		if prefs.PriceMax != nil && listing.Price > *prefs.PriceMax {
			inRange = false
		}
		if inRange {
			matches++
		}
	}
	if checks == 0 {
		return 0
	}
	return float64(matches) / float64(checks)
}

func matchedReasons(listing *domain.ListingSnapshot, req domain.Requirement, now time.Time) []string {
	if listing == nil {
		return nil
	}
	reasons := make([]string, 0, 4)
	if req.District != "" && strings.EqualFold(listing.District, req.District) {
		reasons = append(reasons, reasonDistrictMatch)
	}
	if (req.BedroomsMin != nil || req.BedroomsMax != nil) && bedroomsMatch(*listing, req) {
		reasons = append(reasons, reasonBedroomsMatch)
	}
	if (req.PriceMin != nil || req.PriceMax != nil) && priceMatches(*listing, req) {
		reasons = append(reasons, reasonWithinBudget)
	}
	if !listing.ListedAt.IsZero() && now.Sub(listing.ListedAt) <= recentEditWindow {
		reasons = append(reasons, reasonNewlyListed)
	}
	if listing.Verified {
		reasons = append(reasons, reasonVerifiedSeller)
	}
	return reasons
}

func buildRankingLog(rctx RerankContext, ranked []domain.Candidate) []domain.RankingLogEntry {
	entries := make([]domain.RankingLogEntry, 0, len(ranked))
	for i, c := range ranked {
		entries = append(entries, domain.RankingLogEntry{
			ID:          uuid.NewString(),
			Query:       rctx.Query,
			UserID:      rctx.UserID,
			CandidateID: c.ID,
			Position:    i + 1,
			HybridScore: c.HybridScore,
			RerankScore: c.RerankScore,
			FinalScore:  c.FinalScore,
			CreatedAt:   rctx.Now,
		})
	}
	return entries
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
