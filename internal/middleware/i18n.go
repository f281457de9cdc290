package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// SupportedLocales lists the locales hint messages are translated into. The
// first entry is the fallback.
var SupportedLocales = []language.Tag{language.English, language.Indonesian}

var localeMatcher = language.NewMatcher(SupportedLocales)

// countryHeaders are set by CDNs and load balancers in front of the API.
var countryHeaders = []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the response locale and the client country in the request
// context. The locale comes from, in order: the lang query parameter (used by
// download links opened in a browser), X-Locale, Accept-Language, the client
// country, and finally defaultLocale.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)

			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			w.Header().Set("Content-Language", locale)
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	explicit := []string{r.URL.Query().Get("lang"), r.Header.Get("X-Locale"), r.Header.Get("Accept-Language")}
	for _, v := range explicit {
		if strings.TrimSpace(v) != "" {
			return normalizeLocale(v)
		}
	}
	switch {
	case strings.EqualFold(country, "ID"):
		return "id"
	case country != "":
		return "en"
	case fallback != "":
		return fallback
	}
	return "en"
}

// normalizeLocale matches a locale or Accept-Language list against
// SupportedLocales and returns the base language code.
func normalizeLocale(locale string) string {
	tag, _ := language.MatchStrings(localeMatcher, locale)
	base, _ := tag.Base()
	return base.String()
}

// ClientIP returns the first valid X-Forwarded-For entry, or the host part of
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
			return addr.Unmap().String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the upper-case ISO country code stored by I18N.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry prefers proxy headers, then an explicit locale region, then
// lookup on the client IP.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range countryHeaders {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	for _, locale := range []string{r.Header.Get("X-Locale"), r.Header.Get("Accept-Language")} {
		if strings.TrimSpace(locale) == "" {
			continue
		}
		if region := localeRegion(locale); region != "" {
			return region
		}
		// Indonesian is only spoken in one country.
		if normalizeLocale(locale) == "id" {
			return "ID"
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}

// localeRegion returns the explicit region of the preferred tag, if any.
func localeRegion(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return ""
	}
	region, confidence := tags[0].Region()
	if confidence != language.Exact {
		return ""
	}
	return region.String()
}
