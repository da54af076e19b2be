// Package yai18n serves translated texts from JSON catalogs and binds them to
// the locale negotiated for every event.
//
// A catalog tree holds one `<lang>.json` per folder; a folder name prefixes
// every key of the files inside it:
//
//	locales/en.json        {"greeting": "Hello, {name}!"}
//	locales/menu/en.json   {"title": "Menu"}
//
// Example usage:
//
//	localizer := yai18n.NewLocalizer("en")
//	_ = localizer.LoadFS(os.DirFS("locales"))
//
//	router.Message.Middleware(yabot.LocaleMiddleware(language.English, language.Ukrainian))
//	router.Message.Middleware(yai18n.Middleware(localizer))
//
//	tr, _ := yabot.Value[*yai18n.Translator](data, yai18n.KeyI18n)
//	text := tr.T("greeting", map[string]any{"name": user.FirstName})
package yai18n

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/tidwall/gjson"
	"golang.org/x/text/language"
)

// KeyI18n is the context key of the event *Translator.
const KeyI18n = "i18n"

const catalogExt = ".json"

var placeholderRegexp = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Localizer keeps catalogs per language. It is safe for concurrent reads
// once loading is done.
type Localizer struct {
	mu       sync.RWMutex
	fallback string
	// catalogs maps lang to key prefix to raw JSON.
	catalogs map[string]map[string][]byte
}

func NewLocalizer(fallback string) *Localizer {
	return &Localizer{
		fallback: strings.ToLower(fallback),
		catalogs: make(map[string]map[string][]byte),
	}
}

// Fallback returns the language used when nothing better is loaded.
func (l *Localizer) Fallback() string {
	return l.fallback
}

// Languages returns the loaded languages, sorted.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	langs := make([]string, 0, len(l.catalogs))

	for lang := range l.catalogs {
		langs = append(langs, lang)
	}

	sort.Strings(langs)

	return langs
}

// LoadFS loads every `<lang>.json` of files. Folders prefix the keys.
func (l *Localizer) LoadFS(files fs.FS) yaerrors.Error {
	var loadErr yaerrors.Error

	err := fs.WalkDir(files, ".", func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || path.Ext(name) != catalogExt {
			return nil
		}

		raw, err := fs.ReadFile(files, name)
		if err != nil {
			return err
		}

		dir, file := path.Split(name)
		prefix := strings.ReplaceAll(strings.Trim(dir, "/"), "/", ".")

		if loadErr = l.Load(strings.TrimSuffix(file, catalogExt), prefix, raw); loadErr != nil {
			return loadErr
		}

		return nil
	})

	if loadErr != nil {
		return loadErr.Wrap("[I18N] failed to load catalogs")
	}

	if err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[I18N] failed to walk catalogs",
		)
	}

	return nil
}

// Load registers one catalog of lang under prefix. An empty prefix mounts
// the catalog at the root.
//
// Example:
//
//	_ = localizer.Load("en", "menu", []byte(`{"title": "Menu"}`))
//	localizer.Get("en", "menu.title", nil) // "Menu"
func (l *Localizer) Load(lang string, prefix string, raw []byte) yaerrors.Error {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			ErrInvalidLocaleFile,
			fmt.Sprintf("[I18N] catalog `%s` of `%s` is not a json object", prefix, lang),
		)
	}

	lang = strings.ToLower(lang)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.catalogs[lang] == nil {
		l.catalogs[lang] = make(map[string][]byte)
	}

	l.catalogs[lang][prefix] = raw

	return nil
}

// Resolve picks the loaded language closest to tag: the full tag, its base
// language, then the fallback.
func (l *Localizer) Resolve(tag language.Tag) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	base, _ := tag.Base()

	for _, candidate := range []string{strings.ToLower(tag.String()), base.String()} {
		if _, ok := l.catalogs[candidate]; ok {
			return candidate
		}
	}

	return l.fallback
}

// Get returns key in lang, falling back to the fallback language, with
// `{placeholder}` values taken from args.
func (l *Localizer) Get(lang string, key string, args map[string]any) (string, yaerrors.Error) {
	value, ok := l.lookup(strings.ToLower(lang), key)
	if !ok && lang != l.fallback {
		value, ok = l.lookup(l.fallback, key)
	}

	if !ok {
		return "", yaerrors.FromError(
			http.StatusNotFound,
			ErrKeyNotFound,
			fmt.Sprintf("[I18N] key `%s` is missing in `%s`", key, lang),
		)
	}

	return format(value, args)
}

func (l *Localizer) lookup(lang string, key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	catalogs := l.catalogs[lang]

	prefixes := make([]string, 0, len(catalogs))
	for prefix := range catalogs {
		prefixes = append(prefixes, prefix)
	}

	// Deeper folders win over keys nested in a parent catalog.
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, prefix := range prefixes {
		raw := catalogs[prefix]
		rest := key

		if prefix != "" {
			var found bool

			rest, found = strings.CutPrefix(key, prefix+".")
			if !found {
				continue
			}
		}

		if result := gjson.GetBytes(raw, rest); result.Type == gjson.String {
			return result.Str, true
		}
	}

	return "", false
}

func format(value string, args map[string]any) (string, yaerrors.Error) {
	var missing []string

	out := placeholderRegexp.ReplaceAllStringFunc(value, func(match string) string {
		name := match[1 : len(match)-1]

		arg, ok := args[name]
		if !ok {
			missing = append(missing, name)

			return match
		}

		return fmt.Sprint(arg)
	})

	if len(missing) > 0 {
		return "", yaerrors.FromError(
			http.StatusBadRequest,
			ErrMissingFormatArgs,
			fmt.Sprintf("[I18N] missing placeholders: %v", missing),
		)
	}

	return out, nil
}

// Translator is a Localizer bound to one language.
type Translator struct {
	localizer *Localizer
	lang      string
}

// For binds the localizer to the language closest to tag.
func (l *Localizer) For(tag language.Tag) *Translator {
	return &Translator{localizer: l, lang: l.Resolve(tag)}
}

func (t *Translator) Lang() string {
	return t.lang
}

// Get is Localizer.Get in the bound language.
func (t *Translator) Get(key string, args map[string]any) (string, yaerrors.Error) {
	return t.localizer.Get(t.lang, key, args)
}

// T returns the text of key or the key itself when it cannot be rendered.
func (t *Translator) T(key string, args ...map[string]any) string {
	var merged map[string]any

	if len(args) > 0 {
		merged = make(map[string]any)

		for _, arg := range args {
			for name, value := range arg {
				merged[name] = value
			}
		}
	}

	text, err := t.Get(key, merged)
	if err != nil {
		return key
	}

	return text
}

// Middleware injects a *Translator for the event locale under KeyI18n. It
// reads the tag set by yabot.LocaleMiddleware and falls back to the
// localizer fallback.
func Middleware(localizer *Localizer) yabot.Middleware {
	return func(ctx context.Context, event any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
		tag, ok := yabot.Value[language.Tag](data, yabot.KeyLocale)
		if !ok {
			tag = language.Make(localizer.Fallback())
		}

		data.Set(KeyI18n, localizer.For(tag))

		return next(ctx, event, data)
	}
}
