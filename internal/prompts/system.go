package prompts

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// systemTemplate is the default system instruction, used when no override
// file exists in the prompts directory.
const systemTemplate = `You are a knowledgeable WordPress assistant designed to help users manage their WordPress sites.

Your primary role is to provide helpful, friendly, and expert assistance with WordPress tasks. You should:

1. Be conversational and approachable while maintaining professionalism.
2. Provide clear, concise explanations that are easy to understand.
3. Use the available tools/abilities to perform tasks when requested.
4. Ask clarifying questions when needed to better assist the user.
5. Explain what you're doing when using tools, so users understand the process.
6. Offer relevant suggestions and best practices when appropriate.

You have access to various WordPress-specific abilities that allow you to:
- Search for and retrieve posts
- Create and publish content
- Generate featured images
- Configure site settings
- And more

The site you manage is {{site.url}}. Today is {{date.today}}.

Always aim to be helpful and informative while respecting the user's time and needs.`

// placeholderRe matches any {{...}} placeholder, known or not.
var placeholderRe = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Context carries the values substituted into prompt placeholders.
type Context struct {
	SiteURL  string
	SiteName string
	Now      time.Time
}

// Manager loads named prompts, preferring override files from Dir and
// falling back to the embedded default.
type Manager struct {
	dir   string
	cache map[string]string
}

// NewManager creates a prompt manager. dir may be empty, in which case
// only the embedded defaults are used.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, cache: make(map[string]string)}
}

// System returns the system instruction with placeholders substituted.
// An override lives at <dir>/system.md.
func (m *Manager) System(pctx Context) string {
	content := m.loadFile("system")
	if content == "" {
		content = systemTemplate
	}
	return substitute(content, pctx)
}

func (m *Manager) loadFile(name string) string {
	if m.dir == "" {
		return ""
	}
	if cached, ok := m.cache[name]; ok {
		return cached
	}
	data, err := os.ReadFile(filepath.Join(m.dir, name+".md"))
	if err != nil {
		return ""
	}
	m.cache[name] = string(data)
	return string(data)
}

// substitute replaces known placeholders and strips any that remain, so
// a typo in an override file never reaches the model verbatim.
func substitute(content string, pctx Context) string {
	now := pctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	pairs := []string{
		"{{site.url}}", pctx.SiteURL,
		"{{site.name}}", pctx.SiteName,
		"{{date.today}}", now.Format("Monday, January 2, 2006"),
		"{{date.time}}", now.Format("3:04 PM"),
		"{{date.datetime}}", now.Format("2006-01-02 15:04:05"),
		"{{date.year}}", now.Format("2006"),
	}
	content = strings.NewReplacer(pairs...).Replace(content)

	return placeholderRe.ReplaceAllString(content, "")
}
