// Package httpclient provides the HTTP client the REST backends share:
// base URL resolution, per-request auth, optional retry and typed error
// classification that maps onto the application error taxonomy.
//
// The rest subpackage adds JSON helpers on top:
//
//	c, _ := rest.New(httpclient.Config{BaseURL: "https://api.example.com"})
//	resp, err := rest.Post[Submitted](ctx, c, "/v2/transcript", body,
//	    rest.WithAuth(httpclient.Header("Authorization", key)))
//	if err != nil {
//	    return httpclient.ToAppError(err, "assembly")
//	}
package httpclient
