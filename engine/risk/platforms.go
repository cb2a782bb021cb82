package risk

import (
	"strings"

	"github.com/riclipi/brandguard/engine/domain"
)

// platformRule maps domain or text substrings to a platform and its
// category. Rules are checked in order; the first match wins.
type platformRule struct {
	platform domain.Platform
	category domain.Category
	markers  []string
}

var platformRules = []platformRule{
	{domain.PlatformTelegram, domain.CategoryMessaging, []string{"t.me", "telegram"}},
	{domain.PlatformDiscord, domain.CategoryMessaging, []string{"discord.gg", "discord.com", "discord"}},
	{domain.PlatformReddit, domain.CategorySocialMedia, []string{"reddit.com", "redd.it", "subreddit"}},
	{domain.PlatformTwitter, domain.CategorySocialMedia, []string{"twitter.com", "x.com", "nitter"}},
	{domain.PlatformOnlyFans, domain.CategoryAdultCreator, []string{"onlyfans", "fansly", "fanvue"}},
	{domain.PlatformFileSharing, domain.CategoryFileSharing, []string{"mega.nz", "mediafire", "anonfiles", "gofile", "pixeldrain", "zippyshare"}},
	{domain.PlatformPaste, domain.CategoryFileSharing, []string{"pastebin", "paste.ee", "rentry"}},
	{domain.PlatformTorrent, domain.CategoryFileSharing, []string{"torrent", "magnet:", "1337x", "piratebay"}},
	{domain.PlatformForum, domain.CategoryForum, []string{"forum", "board", "thread", "vbulletin", "xenforo"}},
}

// DetectPlatform classifies a hit by matching its domain and text
// against the fixed rule table. Unmatched hits come back as
// unknown/UNKNOWN rather than an empty value.
func DetectPlatform(host, text string) (domain.Platform, domain.Category) {
	host = strings.ToLower(host)
	text = strings.ToLower(text)
	for _, rule := range platformRules {
		for _, m := range rule.markers {
			if strings.Contains(host, m) || strings.Contains(text, m) {
				return rule.platform, rule.category
			}
		}
	}
	return domain.PlatformUnknown, domain.CategoryUnknown
}
