// autotag suggests tags for pending gallery photos using Gemini.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"google.golang.org/genai"
	"k8s.io/klog/v2"

	"github.com/tstromberg/chitra/pkg/chitra"
)

var (
	dryRun    = flag.Bool("n", false, "dry-run mode, don't tag things")
	overwrite = flag.Bool("o", false, "overwrite existing tags")
	dataDir   = flag.String("data", "", "Location of data directory [CHITRA_DATA_DIR]")
	model     = flag.String("model", "", "Gemini model to ask for tags [CHITRA_MODEL]")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		klog.V(1).Infof("no .env loaded: %v", err)
	}

	dir := *dataDir
	if dir == "" {
		dir = os.Getenv("CHITRA_DATA_DIR")
	}
	if dir == "" {
		klog.Exitf("please give me a data directory to tag")
	}

	key := os.Getenv("GOOGLE_AI_API_KEY")
	if key == "" {
		klog.Exitf("GOOGLE_AI_API_KEY is unset")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
	if err != nil {
		klog.Exitf("genai: %v", err)
	}

	st, err := chitra.Open(dir)
	if err != nil {
		klog.Exitf("open store: %v", err)
	}
	c := &chitra.Config{DataDir: dir, Model: *model}
	if c.Model == "" {
		c.Model = os.Getenv("CHITRA_MODEL")
	}
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	site := chitra.New(c, st)

	ps := site.PendingPhotos()
	klog.Infof("%d pending photos in %s, asking %s", len(ps), dir, c.Model)

	tagged := 0
	for _, p := range ps {
		if !*overwrite && len(p.Tags) > 0 {
			klog.Infof("%s has tags: %v", p.ID, p.Tags)
			continue
		}
		tags, err := chitra.AutoTag(ctx, client, c.Model, c.DataDir, p)
		if err != nil {
			klog.Errorf("%s: %v", p.ID, err)
			continue
		}
		klog.Infof("adding tags to %s (%s): %v", p.ID, p.Title, tags)
		if *dryRun {
			continue
		}
		if err := site.TagPhoto(p.ID, tags); err != nil {
			klog.Errorf("tag %s: %v", p.ID, err)
			continue
		}
		tagged++
	}

	klog.Infof("autotag completed. Tagged %d of %d pending photos", tagged, len(ps))
}
