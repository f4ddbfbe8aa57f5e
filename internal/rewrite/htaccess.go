package rewrite

// DefaultHTAccessFile is the file name the Apache configuration is written to.
const DefaultHTAccessFile = ".htaccess"

// HTAccess is the Apache configuration written next to the rewritten site.
// It routes /climate/ to the site root, forces HTTPS, sets security headers and
// enables compression for text responses.
const HTAccess = `# Climate Risk Analysis - Main Domain Setup
RewriteEngine On

# Handle climate risk app routing
RewriteRule ^climate/?$ index.html [L]
RewriteRule ^climate/(.*)$ $1 [L]

# Ensure HTTPS
RewriteCond %{HTTPS} off
RewriteRule ^(.*)$ https://%{HTTP_HOST}%{REQUEST_URI} [L,R=301]

# Add security headers
<IfModule mod_headers.c>
    Header always set X-Content-Type-Options nosniff
    Header always set X-Frame-Options DENY
    Header always set X-XSS-Protection "1; mode=block"
    Header always set Strict-Transport-Security "max-age=31536000; includeSubDomains"
</IfModule>

# Enable compression
<IfModule mod_deflate.c>
    AddOutputFilterByType DEFLATE text/html text/plain text/xml text/css text/javascript application/javascript application/json
</IfModule>
`
