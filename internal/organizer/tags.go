package organizer

import "sort"

// TagLibrary deduplicates tag text across every chat in every folder,
// keeping the first-seen display color, sorted lexicographically. Both tag
// shapes contribute.
func TagLibrary(folders []Folder) []Tag {
	seen := map[string]string{}
	order := make([]string, 0)
	for _, folder := range folders {
		for _, chat := range folder.Chats {
			for _, tag := range chat.Tags {
				if _, ok := seen[tag.Text]; ok {
					continue
				}
				seen[tag.Text] = tag.DisplayColor()
				order = append(order, tag.Text)
			}
		}
	}
	sort.Strings(order)
	library := make([]Tag, 0, len(order))
	for _, text := range order {
		library = append(library, Tag{Text: text, Color: seen[text]})
	}
	return library
}

// ArchivedURLs builds the membership set used to classify host-page chats:
// a chat whose URL is present anywhere in the folder tree is archived and
// must not be offered for adding again.
func ArchivedURLs(folders []Folder) map[string]struct{} {
	urls := make(map[string]struct{})
	for _, folder := range folders {
		for _, chat := range folder.Chats {
			urls[chat.URL] = struct{}{}
		}
	}
	return urls
}
