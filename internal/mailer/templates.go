package mailer

import (
	"bytes"
	"html/template"
	texttemplate "text/template"
)

type updateData struct {
	Name     string
	Number   string
	Status   string
	Total    string
	TrackURL string
}

var updateText = texttemplate.Must(texttemplate.New("update.txt").Parse(`Hi {{.Name}},

Your order {{.Number}} has been updated.
New Status: {{.Status}}

Total: {{.Total}}

— BizConnect Team`))

var updateHTML = template.Must(template.New("update.html").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"/></head>
<body style="margin:0;padding:0;background:#FAF8F4;font-family:sans-serif;">
  <div style="max-width:560px;margin:40px auto;background:#fff;border-radius:12px;overflow:hidden;border:1px solid rgba(0,0,0,0.08);">
    <div style="background:#1C1C1E;padding:28px 32px;">
      <span style="font-family:Georgia,serif;font-size:22px;font-weight:700;color:#C9A96E;">BizConnect</span>
    </div>
    <div style="padding:32px;">
      <h2 style="font-family:Georgia,serif;color:#1C1C1E;margin:0 0 16px;">Order Update</h2>
      <p style="color:#6E6E73;margin:0 0 24px;">Hi {{.Name}},</p>
      <div style="background:#FAF8F4;border-radius:8px;padding:20px;margin-bottom:24px;">
        <div style="margin-bottom:8px;"><span style="font-size:12px;color:#6E6E73;text-transform:uppercase;">Order</span><br/><strong>{{.Number}}</strong></div>
        <div style="margin-bottom:8px;"><span style="font-size:12px;color:#6E6E73;text-transform:uppercase;">Status</span><br/><strong style="color:#C9A96E;font-size:16px;">{{.Status}}</strong></div>
        <div><span style="font-size:12px;color:#6E6E73;text-transform:uppercase;">Total</span><br/><strong>{{.Total}}</strong></div>
      </div>
      <a href="{{.TrackURL}}" style="display:inline-block;background:#C9A96E;color:#1C1C1E;padding:12px 28px;border-radius:100px;font-weight:600;text-decoration:none;font-size:14px;">Track My Order</a>
    </div>
    <div style="padding:16px 32px;border-top:1px solid rgba(0,0,0,0.06);color:#AEAEB2;font-size:12px;">BizConnect — Premium Philippine Marketplace</div>
  </div>
</body></html>`))

func renderUpdate(d updateData) (string, string, error) {
	var txt, html bytes.Buffer
	if err := updateText.Execute(&txt, d); err != nil {
		return "", "", err
	}
	if err := updateHTML.Execute(&html, d); err != nil {
		return "", "", err
	}
	return txt.String(), html.String(), nil
}
