package adapters

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJar_DottedDomainRoundTrip(t *testing.T) {
	store := NewCookieGorm(setupTestDB(t))
	jar := NewUserJar(store, "alice")

	jar.SetCookies(mustURL(t, "https://sso.buaa.edu.cn/login"), []*http.Cookie{
		{Name: "CASTGC", Value: "tgt-1", Domain: ".buaa.edu.cn", Path: "/"},
	})

	// The dot is an RFC 6265 artifact; the stored domain is the bare form.
	stored, err := store.Get(context.Background(), "alice", mustURL(t, "https://buaa.edu.cn/"))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "buaa.edu.cn", stored[0].Domain)

	// The cookie comes back on every host under the domain, including the
	// one that set it.
	for _, target := range []string{
		"https://sso.buaa.edu.cn/login",
		"https://bykc.buaa.edu.cn/sscv/choseCourse",
	} {
		got := jar.Cookies(mustURL(t, target))
		require.Len(t, got, 1, "expected cookie for %s", target)
		assert.Equal(t, "CASTGC", got[0].Name)
		assert.Equal(t, "tgt-1", got[0].Value)
	}
}

func TestUserJar_DefaultsDomainAndPath(t *testing.T) {
	store := NewCookieGorm(setupTestDB(t))
	jar := NewUserJar(store, "alice")

	jar.SetCookies(mustURL(t, "https://sso.buaa.edu.cn/cas/login"), []*http.Cookie{
		{Name: "JSESSIONID", Value: "s-1"},
	})

	got := jar.Cookies(mustURL(t, "https://sso.buaa.edu.cn/cas/other"))
	require.Len(t, got, 1)
	assert.Equal(t, "JSESSIONID", got[0].Name)

	// Host-only default: not sent to sibling subdomains.
	assert.Empty(t, jar.Cookies(mustURL(t, "https://bykc.buaa.edu.cn/cas/other")))
}
