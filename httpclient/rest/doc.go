// Package rest provides typed JSON helpers over httpclient.Client:
//
//	client, _ := rest.New(httpclient.Config{
//	    BaseURL: "https://api.assemblyai.com",
//	    Retry:   httpclient.DefaultRetryConfig(),
//	})
//	resp, err := rest.Get[Status](ctx, client, "/v2/transcript/"+id)
package rest
