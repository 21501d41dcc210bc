package catalog

import (
	"sort"
	"strings"

	"github.com/castsync/castsync/pkg/model"
)

// Author is a team member aggregated across episodes.
type Author struct {
	Name     string
	Email    string
	Episodes int
	Programs []string
}

// Authors groups episode team members by email. programs maps program ids to titles.
// The result is ordered by episode count, then name.
func Authors(episodes []*model.Episode, programs map[string]string) []*Author {
	var (
		byEmail     = make(map[string]*Author)
		programSets = make(map[string]map[string]struct{})
	)

	for _, ep := range episodes {
		for _, person := range ep.Authors {
			email := strings.ToLower(strings.TrimSpace(person.Email))
			if email == "" || person.Name == "" {
				continue
			}

			author, ok := byEmail[email]
			if !ok {
				author = &Author{Name: person.Name, Email: email}
				byEmail[email] = author
				programSets[email] = make(map[string]struct{})
			}

			author.Episodes++

			title := programs[ep.ProgramID]
			if title == "" {
				title = ep.ProgramID
			}

			if _, ok := programSets[email][title]; !ok {
				programSets[email][title] = struct{}{}
				author.Programs = append(author.Programs, title)
			}
		}
	}

	out := make([]*Author, 0, len(byEmail))
	for _, author := range byEmail {
		sort.Strings(author.Programs)
		out = append(out, author)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Episodes != out[j].Episodes {
			return out[i].Episodes > out[j].Episodes
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Email < out[j].Email
	})

	return out
}

// ByAuthor keeps the episodes credited to email.
func ByAuthor(episodes []*model.Episode, email string) []*model.Episode {
	email = strings.ToLower(strings.TrimSpace(email))

	var out []*model.Episode
	for _, ep := range episodes {
		for _, person := range ep.Authors {
			if strings.ToLower(strings.TrimSpace(person.Email)) == email {
				out = append(out, ep)
				break
			}
		}
	}

	return out
}
