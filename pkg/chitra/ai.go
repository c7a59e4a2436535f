package chitra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

// TagThumb specifies which thumbnail to use for AI tagging.
var TagThumb = "Album"

// maxTags is the most tags AutoTag returns.
const maxTags = 5

var tagPrompt = "generate 1-5 comma-separated one-word tags for this photo from a community gallery in Nepal. " +
	"Tags should be a present-tense singular lowercase word that a photographer would organize albums with, " +
	"for example: mountain, temple, festival, river, village, farming, market, portrait, wildlife, bird, " +
	"forest, sunrise, snow, trek, prayerflag, stupa, rice. Use bw for black and white photos. " +
	"If you know the location of a photo, add the name of the place, district, or city as a tag. " +
	"Do not combine multiple words. Do not use plural words. Reply with the tags only."

// AutoTag suggests tags for a photo using Gemini.
func AutoTag(ctx context.Context, client *genai.Client, model string, dataDir string, p Photo) ([]string, error) {
	rel := p.File
	if t, ok := p.Thumbs[TagThumb]; ok {
		rel = t.RelPath
	}
	if rel == "" {
		return nil, errors.New("photo has no image")
	}

	bs, err := os.ReadFile(filepath.Join(dataDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(bs, "image/jpeg"),
			genai.NewPartFromText(tagPrompt),
		}, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	tags := parseTags(resp.Text())
	klog.V(1).Infof("%s: suggested tags %v", p.ID, tags)
	return tags, nil
}

// parseTags splits a comma-separated model reply into at most maxTags tags.
func parseTags(s string) []string {
	tags := []string{}
	seen := map[string]bool{}
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.Join(strings.Fields(t), ""))
		t = strings.Trim(t, ".")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}
