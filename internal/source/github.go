// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v34/github"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// LatestRelease selects the most recent release of a repository.
const LatestRelease = "latest"

// GitHub enumerates the assets of a GitHub release.
type GitHub struct {
	// Repository is in owner/name form.
	Repository string
	// Release is a tag name or LatestRelease.
	Release string
	// Token authenticates API requests, optional.
	Token string

	Log logrus.FieldLogger

	// Client overrides the API client, for tests.
	Client *github.Client
}

func (g *GitHub) client(ctx context.Context) (*github.Client, *http.Client) {
	if g.Client != nil {
		return g.Client, http.DefaultClient
	}

	var hc *http.Client

	if len(g.Token) > 0 {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.Token}))
	} else {
		hc = http.DefaultClient
	}

	return github.NewClient(hc), hc
}

// Inputs implements Source, assets are downloaded on Load.
func (g *GitHub) Inputs(ctx context.Context) (inputs []Input, err error) {
	var release *github.RepositoryRelease

	owner, repo, ok := strings.Cut(g.Repository, "/")

	if !ok || len(owner) == 0 || len(repo) == 0 {
		return nil, errors.Errorf("invalid repository %q, expected owner/name", g.Repository)
	}

	client, hc := g.client(ctx)

	if g.Release == LatestRelease || len(g.Release) == 0 {
		release, _, err = client.Repositories.GetLatestRelease(ctx, owner, repo)
	} else {
		release, _, err = client.Repositories.GetReleaseByTag(ctx, owner, repo, g.Release)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "could not find %s release for github.com/%s", g.Release, g.Repository)
	}

	tagName := release.GetTagName()

	if g.Log != nil {
		g.Log.WithFields(logrus.Fields{
			"tag":  tagName,
			"link": release.GetHTMLURL(),
		}).Infof("found %d assets", len(release.Assets))
	}

	for _, asset := range release.Assets {
		asset := asset

		inputs = append(inputs, Input{
			Name: fmt.Sprintf("github.com/%s@%s/%s", g.Repository, tagName, asset.GetName()),
			Load: func() ([]byte, error) {
				return g.download(ctx, hc, asset)
			},
		})
	}

	return
}

func (g *GitHub) download(ctx context.Context, hc *http.Client, asset *github.ReleaseAsset) ([]byte, error) {
	if g.Log != nil {
		g.Log.Debugf("downloading %s %d KiB from %s", asset.GetName(), asset.GetSize()/1024, asset.GetBrowserDownloadURL())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.GetBrowserDownloadURL(), nil)

	if err != nil {
		return nil, err
	}

	res, err := hc.Do(req)

	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("could not download %s, %s", asset.GetName(), res.Status)
	}

	return io.ReadAll(res.Body)
}
